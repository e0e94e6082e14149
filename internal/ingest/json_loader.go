package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/precedent2txt/internal/common"
	"github.com/joseph-ayodele/precedent2txt/internal/entity"
)

// JSONLoader reads case records from either input layout:
//
//	mapping: {"<name>": {"case_number": "...", "full_pdf_link": "..."}, ...}
//	list:    [{"case_number": "...", "full_pdf_link": "...", "date": {...}}, ...]
//
// Each record is validated on its own. A record that fails validation is returned
// with Err set instead of failing the whole document.
type JSONLoader struct {
	logger     *slog.Logger
	mappingDoc *jsonschema.Schema
	listDoc    *jsonschema.Schema
}

type rawRecord struct {
	CaseNumber  string               `json:"case_number"`
	FullPDFLink string               `json:"full_pdf_link"`
	Date        *entity.DecisionDate `json:"date"`
}

func NewJSONLoader(logger *slog.Logger) (*JSONLoader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mapping, err := compileSchema("mapping_record.json", buildRecordSchema(false))
	if err != nil {
		return nil, err
	}
	list, err := compileSchema("list_record.json", buildRecordSchema(true))
	if err != nil {
		return nil, err
	}
	return &JSONLoader{logger: logger, mappingDoc: mapping, listDoc: list}, nil
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// LoadFile reads path and delegates to Load.
func (l *JSONLoader) LoadFile(ctx context.Context, path string) ([]entity.CaseRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		l.logger.Error("ingest.read failed", "path", path, "error", err)
		return nil, common.IOError(fmt.Sprintf("read input %q", path), err)
	}
	return l.Load(ctx, data)
}

// Load detects the layout of data and returns its records in processing order.
// Mapping keys are visited in sorted order; list items keep their position.
func (l *JSONLoader) Load(_ context.Context, data []byte) ([]entity.CaseRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, common.SchemaError("input document is empty")
	}

	switch trimmed[0] {
	case '{':
		var doc map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, common.ParseError("decode mapping input", err)
		}
		return l.loadMapping(doc), nil
	case '[':
		var doc []json.RawMessage
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, common.ParseError("decode list input", err)
		}
		return l.loadList(doc), nil
	default:
		return nil, common.SchemaError("input must be a JSON object or array")
	}
}

func (l *JSONLoader) loadMapping(doc map[string]json.RawMessage) []entity.CaseRecord {
	names := make([]string, 0, len(doc))
	for name := range doc {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]entity.CaseRecord, 0, len(names))
	for _, name := range names {
		rec := entity.CaseRecord{Name: name, Variant: entity.VariantMapping}
		raw, err := l.decode(l.mappingDoc, doc[name])
		if err == nil {
			err = checkName(name)
		}
		if err != nil {
			rec.Err = common.NewAppError(common.CodeSchema, fmt.Sprintf("case %q", name), err)
			l.logger.Warn("ingest.record invalid", "case", name, "error", err)
		} else {
			rec.CaseNumber = raw.CaseNumber
			rec.SourceURL = raw.FullPDFLink
			rec.Date = raw.Date
		}
		out = append(out, rec)
	}
	l.logger.Info("ingest.loaded", "variant", entity.VariantMapping, "records", len(out))
	return out
}

func (l *JSONLoader) loadList(doc []json.RawMessage) []entity.CaseRecord {
	out := make([]entity.CaseRecord, 0, len(doc))
	taken := make(map[string]bool, len(doc))
	for i, item := range doc {
		rec := entity.CaseRecord{Variant: entity.VariantList}
		raw, err := l.decode(l.listDoc, item)
		if err != nil {
			rec.Name = fmt.Sprintf("record-%d", i)
			rec.Err = common.NewAppError(common.CodeSchema, fmt.Sprintf("list item %d", i), err)
			l.logger.Warn("ingest.record invalid", "index", i, "error", err)
			out = append(out, rec)
			continue
		}
		name := entity.SynthesizeName(raw.CaseNumber, *raw.Date)
		if err := checkName(name); err != nil {
			rec.Name = fmt.Sprintf("record-%d", i)
			rec.Err = common.NewAppError(common.CodeSchema, fmt.Sprintf("list item %d", i), err)
			l.logger.Warn("ingest.record invalid", "index", i, "error", err)
			out = append(out, rec)
			continue
		}
		rec.CaseNumber = raw.CaseNumber
		rec.SourceURL = raw.FullPDFLink
		rec.Date = raw.Date
		rec.Name = uniqueName(name, taken)
		if rec.Name != name {
			l.logger.Warn("ingest.duplicate name", "case", name, "index", i, "renamed", rec.Name)
		}
		taken[rec.Name] = true
		out = append(out, rec)
	}
	l.logger.Info("ingest.loaded", "variant", entity.VariantList, "records", len(out))
	return out
}

// checkName rejects names that would escape the tmp or output directory.
func checkName(name string) error {
	if v := common.NewValidator().Field("name", name, common.FileName); v.HasErrors() {
		return errors.New(v.ErrorMessage())
	}
	return nil
}

// uniqueName suffixes repeats of a synthesized name with _2, _3 and so on so
// that no two records share output files.
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for n := 2; ; n++ {
		if c := fmt.Sprintf("%s_%d", name, n); !taken[c] {
			return c
		}
	}
}

func (l *JSONLoader) decode(schema *jsonschema.Schema, item json.RawMessage) (rawRecord, error) {
	var rec rawRecord
	var v any
	if err := json.Unmarshal(item, &v); err != nil {
		return rec, fmt.Errorf("unmarshal record: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return rec, fmt.Errorf("record does not match schema: %w", err)
	}
	if err := json.Unmarshal(item, &rec); err != nil {
		return rec, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}
