package ingest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/marzetti/salon-assistant/internal/knowledge"
	"github.com/marzetti/salon-assistant/internal/model"
)

// Chunking window, in characters.
const (
	ChunkSize    = 1600
	ChunkOverlap = 400
)

// DefaultCategory is used for files sitting directly under the root.
const DefaultCategory = "general"

// Payload keys added to every chunk.
const (
	FilePathKey   = "file_path"
	ChunkIndexKey = "chunk_index"
)

// Chunk splits text into windows of size characters, each starting overlap
// characters before the end of the previous one. Windows are trimmed and
// blank ones dropped.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	runes := []rune(text)
	var out []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return out
}

// Collect walks root and turns every .md and .json file into knowledge
// chunks without embeddings. Other files are ignored. Files are visited in
// lexical order so ids and payloads are stable between runs.
func Collect(root string) ([]model.KnowledgeChunk, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("knowledge root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge root %s is not a directory", root)
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)

	var chunks []model.KnowledgeChunk
	for _, full := range files {
		rel, err := filepath.Rel(root, full)
		if err != nil {
			return nil, err
		}
		rel = filepath.ToSlash(rel)
		var got []model.KnowledgeChunk
		switch strings.ToLower(path.Ext(rel)) {
		case ".md":
			got, err = markdownChunks(full, rel)
		case ".json":
			got, err = jsonChunks(full, rel)
		default:
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", rel, err)
		}
		chunks = append(chunks, got...)
	}
	return chunks, nil
}

func categoryOf(rel string) string {
	dir := path.Base(path.Dir(rel))
	if dir == "." || dir == "/" || dir == "" {
		return DefaultCategory
	}
	return dir
}

func baseName(rel string) string {
	return strings.TrimSuffix(path.Base(rel), path.Ext(rel))
}

const frontMatterDelim = "---"

// splitFrontMatter separates a leading YAML block delimited by --- lines
// from the document body. Documents without a terminated block are all body.
func splitFrontMatter(raw []byte) (map[string]interface{}, string, error) {
	text := strings.TrimPrefix(string(raw), "\ufeff")
	lines := strings.Split(text, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontMatterDelim {
		return map[string]interface{}{}, text, nil
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != frontMatterDelim {
			continue
		}
		meta := map[string]interface{}{}
		if err := yaml.Unmarshal([]byte(strings.Join(lines[1:i], "\n")), &meta); err != nil {
			return nil, "", fmt.Errorf("front matter: %w", err)
		}
		if meta == nil {
			meta = map[string]interface{}{}
		}
		return meta, strings.Join(lines[i+1:], "\n"), nil
	}
	return map[string]interface{}{}, text, nil
}

func markdownChunks(full, rel string) ([]model.KnowledgeChunk, error) {
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	meta, body, err := splitFrontMatter(raw)
	if err != nil {
		return nil, err
	}
	if c, _ := meta[knowledge.CategoryKey].(string); c == "" {
		meta[knowledge.CategoryKey] = categoryOf(rel)
	}
	prefix := baseName(rel)
	if sid := scalar(meta[knowledge.SourceIDKey]); sid != "" {
		prefix = sid
	}

	texts := Chunk(body, ChunkSize, ChunkOverlap)
	out := make([]model.KnowledgeChunk, 0, len(texts))
	for i, text := range texts {
		payload := make(map[string]interface{}, len(meta)+2)
		for k, v := range meta {
			payload[k] = v
		}
		payload[FilePathKey] = rel
		payload[ChunkIndexKey] = i
		out = append(out, model.KnowledgeChunk{
			ID:       fmt.Sprintf("%s-%d", prefix, i),
			Text:     text,
			Metadata: payload,
		})
	}
	return out, nil
}

type listing struct {
	Version   interface{}              `json:"version"`
	Vigencia  interface{}              `json:"vigencia"`
	Servicios []map[string]interface{} `json:"servicios"`
	Productos []map[string]interface{} `json:"productos"`
}

func jsonChunks(full, rel string) ([]model.KnowledgeChunk, error) {
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	var l listing
	if _, isObject := doc.(map[string]interface{}); isObject {
		if err := json.Unmarshal(raw, &l); err != nil {
			// servicios/productos of an unexpected shape: index the file as a whole
			l = listing{}
		}
	}

	category := categoryOf(rel)
	base := func(id string) map[string]interface{} {
		p := map[string]interface{}{
			knowledge.CategoryKey: category,
			knowledge.SourceIDKey: id,
			FilePathKey:           rel,
		}
		if l.Version != nil {
			p["version"] = l.Version
		}
		if l.Vigencia != nil {
			p["vigencia"] = l.Vigencia
		}
		return p
	}

	var out []model.KnowledgeChunk
	for i, item := range l.Servicios {
		id := "precios-" + itemID(item, i)
		out = append(out, model.KnowledgeChunk{
			ID: id,
			Text: fmt.Sprintf("Servicio: %s. Precio desde %s hasta %s. Nota: %s",
				scalar(item["nombre"]), scalar(item["precio_desde"]), scalar(item["precio_hasta"]), scalar(item["nota"])),
			Metadata: base(id),
		})
	}
	for i, item := range l.Productos {
		id := "productos-" + itemID(item, i)
		out = append(out, model.KnowledgeChunk{
			ID: id,
			Text: fmt.Sprintf("Producto: %s. Precio %s. Categoria: %s. Nota: %s",
				scalar(item["nombre"]), scalar(item["precio"]), scalar(item["categoria"]), scalar(item["nota"])),
			Metadata: base(id),
		})
	}
	if len(out) > 0 {
		return out, nil
	}

	pretty, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	id := "json-" + baseName(rel)
	p := base(id)
	delete(p, "version")
	delete(p, "vigencia")
	return []model.KnowledgeChunk{{ID: id, Text: string(pretty), Metadata: p}}, nil
}

func itemID(item map[string]interface{}, index int) string {
	if id := scalar(item["id"]); id != "" && id != "0" && id != "false" {
		return id
	}
	return fmt.Sprintf("%d", index)
}

// scalar renders a decoded JSON or YAML value for chunk text. Missing
// values render empty.
func scalar(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
