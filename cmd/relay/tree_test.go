package main

import (
	"bytes"
	"testing"

	"github.com/sandevgo/tuskrelay/internal/service/workspace"
	"github.com/stretchr/testify/assert"
)

func TestPrintTree(t *testing.T) {
	files := []workspace.File{
		{Name: "src", IsDirectory: true, Children: []workspace.File{
			{Name: "main.go"},
			{Name: "util.go"},
		}},
		{Name: "README.md"},
	}

	var buf bytes.Buffer
	printTree(&buf, files, "")

	out := buf.String()
	assert.Contains(t, out, "├── ")
	assert.Contains(t, out, "│   ├── main.go")
	assert.Contains(t, out, "│   └── util.go")
	assert.Contains(t, out, "└── README.md")
}
