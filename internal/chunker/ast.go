package chunker

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// astLanguage pairs a tree-sitter grammar with the node types spec §4.3's
// table extracts for that language and the AST field tree-sitter stores a
// declaration's identifier under.
type astLanguage struct {
	grammar   *sitter.Language
	nodeTypes map[string]bool // tree-sitter node type -> extracted
	nameField string
}

var astLanguageTable = map[string]astLanguage{
	"go": {
		grammar: golang.GetLanguage(),
		nodeTypes: map[string]bool{
			"function_declaration": true,
			"method_declaration":   true,
			"type_declaration":     true,
		},
		nameField: "name",
	},
	"typescript": {
		grammar: typescript.GetLanguage(),
		nodeTypes: map[string]bool{
			"function_declaration":  true,
			"class_declaration":     true,
			"interface_declaration": true,
			"method_definition":     true,
		},
		nameField: "name",
	},
	"javascript": {
		grammar: javascript.GetLanguage(),
		nodeTypes: map[string]bool{
			"function_declaration": true,
			"class_declaration":    true,
			"method_definition":    true,
		},
		nameField: "name",
	},
	"python": {
		grammar: python.GetLanguage(),
		nodeTypes: map[string]bool{
			"function_definition": true,
			"class_definition":    true,
		},
		nameField: "name",
	},
	"rust": {
		grammar: rust.GetLanguage(),
		nodeTypes: map[string]bool{
			"function_item": true,
			"impl_item":     true,
			"struct_item":   true,
			"enum_item":     true,
			"trait_item":    true,
			"mod_item":      true,
		},
		nameField: "name",
	},
}

// chunkAST parses content with the language's tree-sitter grammar and
// extracts one Chunk per matching declaration node, per spec §4.3.
func chunkAST(ctx context.Context, content []byte, language string) ([]Chunk, error) {
	lang, ok := astLanguageTable[language]
	if !ok {
		return nil, fmt.Errorf("no tree-sitter grammar registered for language %q", language)
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang.grammar)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s source: %w", language, err)
	}
	if tree == nil {
		return nil, fmt.Errorf("parse %s source: nil tree", language)
	}
	defer tree.Close()

	var chunks []Chunk
	walk(tree.RootNode(), func(n *sitter.Node) bool {
		if lang.nodeTypes[n.Type()] {
			chunks = append(chunks, nodeToChunk(n, content, lang.nameField))
		}
		return true // descend regardless, e.g. methods nested inside a class
	})

	if len(chunks) == 0 {
		// No declarations matched (e.g. a script with only top-level
		// statements): fall back to treating the whole file as one chunk
		// so callers always get at least a coarse search unit.
		chunks = append(chunks, Chunk{
			Content:   string(content),
			StartLine: 1,
			EndLine:   countLines(content),
			StartByte: 0,
			EndByte:   len(content),
			NodeType:  "file",
		})
	}

	return chunks, nil
}

// walk visits n and its descendants depth-first, calling visit on each. If
// visit returns false, n's children are skipped.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

func nodeToChunk(n *sitter.Node, content []byte, nameField string) Chunk {
	start, end := n.StartByte(), n.EndByte()
	if int(end) > len(content) {
		end = uint32(len(content))
	}
	name := ""
	field := n.ChildByFieldName(nameField)
	if field == nil && n.NamedChildCount() > 0 {
		// Go's type_declaration carries its name on the inner type_spec.
		field = n.NamedChild(0).ChildByFieldName(nameField)
	}
	if field != nil {
		name = string(content[field.StartByte():field.EndByte()])
	}
	return Chunk{
		Content:   string(content[start:end]),
		StartLine: int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
		StartByte: int(start),
		EndByte:   int(end),
		NodeType:  n.Type(),
		NodeName:  name,
	}
}

func countLines(content []byte) int {
	n := 1
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	return n
}
