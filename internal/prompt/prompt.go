// Package prompt composes the single text document sent to the model for a free-text customer question.
//
// The customer query is inserted verbatim. It is neither truncated nor sanitized, so a query can try to
// override the instructions of the preamble.
package prompt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MegaGrindStone/retail-cs-web-ui/internal/knowledge"
)

// Preamble is the persona line every prompt starts with.
const Preamble = "Kamu adalah customer service retail yang profesional, ramah, dan sangat membantu."

const instructions = `INSTRUKSI:
1. Berikan jawaban yang sopan, informatif, dan membantu
2. Gunakan bahasa Indonesia yang mudah dipahami
3. Jika ada pertanyaan spesifik, berikan jawaban yang detail
4. Untuk keluhan, tunjukkan empati dan berikan solusi
5. Selalu tawarkan bantuan lebih lanjut`

// Builder renders prompts against a fixed knowledge base.
type Builder struct {
	context string
}

// NewBuilder serializes kb once and returns a Builder that embeds it in every prompt.
func NewBuilder(kb knowledge.Base) (Builder, error) {
	products, err := encodeProducts(kb)
	if err != nil {
		return Builder{}, fmt.Errorf("failed to encode products: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("KONTEKS RETAIL:\n")
	sb.WriteString("- Produk: ")
	sb.WriteString(products)
	sb.WriteString("\n- Layanan: ")
	sb.WriteString(strings.Join(kb.Services(), ", "))
	sb.WriteString("\n- Promosi: ")
	sb.WriteString(strings.Join(kb.Promotions(), ", "))

	return Builder{context: sb.String()}, nil
}

// encodeProducts renders the catalog as a JSON object with categories in sorted order and ", " / ": "
// separators, e.g. {"elektronik": ["Laptop", "Tablet"]}.
func encodeProducts(kb knowledge.Base) (string, error) {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, category := range kb.Categories() {
		if i > 0 {
			sb.WriteString(", ")
		}
		key, err := encodeString(category)
		if err != nil {
			return "", err
		}
		sb.WriteString(key)
		sb.WriteString(": [")
		for j, item := range kb.Items(category) {
			if j > 0 {
				sb.WriteString(", ")
			}
			v, err := encodeString(item)
			if err != nil {
				return "", err
			}
			sb.WriteString(v)
		}
		sb.WriteByte(']')
	}
	sb.WriteByte('}')
	return sb.String(), nil
}

func encodeString(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// Keep "&" and non-ASCII item names readable for the model.
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Build returns the prompt for query. extraContext is appended verbatim after the query and may be empty.
func (b Builder) Build(query, extraContext string) string {
	return fmt.Sprintf(`
%s

%s

%s

PERTANYAAN CUSTOMER: %s

KONTEKS TAMBAHAN: %s

JAWABAN:
`, Preamble, b.context, instructions, query, extraContext)
}
