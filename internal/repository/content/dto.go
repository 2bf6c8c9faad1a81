package content

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/meridianlab/semsearch/internal/domain"
)

const vectorField = "__vector"

// buildHashFields converts a content item into a flat map[string]string for HSET.
func buildHashFields(item *domain.ContentItem, vector []float32) map[string]string {
	return map[string]string{
		"title":      item.Title,
		"body":       item.Body,
		"category":   item.Category,
		"difficulty": item.Difficulty,
		"tags":       strings.Join(item.Tags, ","),
		"author":     item.Author,
		"read_time":  strconv.Itoa(item.ReadTime),
		"created_at": item.CreatedAt,
		"seq":        strconv.FormatInt(item.Seq, 10),
		vectorField:  vectorToBytes(vector),
	}
}

// parseHashFields converts a flat hash map back into a content item.
func parseHashFields(id string, m map[string]string) domain.ContentItem {
	item := domain.ContentItem{
		ID:         id,
		Title:      m["title"],
		Body:       m["body"],
		Category:   m["category"],
		Difficulty: m["difficulty"],
		Author:     m["author"],
		CreatedAt:  m["created_at"],
	}
	if raw := m["tags"]; raw != "" {
		item.Tags = strings.Split(raw, ",")
	}
	if n, err := strconv.Atoi(m["read_time"]); err == nil {
		item.ReadTime = n
	}
	if seq, err := strconv.ParseInt(m["seq"], 10, 64); err == nil {
		item.Seq = seq
	}
	return item
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
