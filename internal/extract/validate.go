package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/submissions-pipeline/internal/entity"
)

// pageRecordSchema describes a stored slide row. Records that fail it are
// never written.
func pageRecordSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	count := map[string]any{"type": "integer", "minimum": 0}

	return map[string]any{
		"type":     "array",
		"minItems": 1,
		"items": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"slide_number":    map[string]any{"type": "integer", "minimum": 1},
				"text_content":    nullableString,
				"images_ocr_text": nullableString,
				"tables_data": map[string]any{
					"type": []string{"array", "null"},
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"markdown": map[string]any{"type": "string"},
							"csv":      map[string]any{"type": "string"},
						},
						"required": []string{"markdown", "csv"},
					},
				},
				"element_counts": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text_blocks": count,
						"tables":      count,
						"pictures":    count,
					},
					"required": []string{"text_blocks", "tables", "pictures"},
				},
				"complexity_score": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
			},
			"required": []string{"slide_number", "element_counts", "complexity_score"},
		},
	}
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		b, err := json.Marshal(pageRecordSchema())
		if err != nil {
			schemaErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("page_records.json", bytes.NewReader(b)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("page_records.json")
	})
	return schema, schemaErr
}

// ValidateRecords checks records against the slide schema and that slide
// numbers run 1..N without gaps.
func ValidateRecords(records []entity.PageRecord) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	b, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("unmarshal records: %w", err)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("records do not match schema: %w", err)
	}
	for i, r := range records {
		if r.SlideNumber != i+1 {
			return fmt.Errorf("slide numbers not contiguous: position %d has %d", i+1, r.SlideNumber)
		}
	}
	return nil
}
