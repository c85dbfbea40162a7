package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const annotated = `package api

// @Title: Get Sale
// @Route: GET /api/sale?id=<sale id>
// @Description: Returns a sale.
// @Response: Sale object
func (s *Service) HandleSale() {}

// @Title: Untitled route is skipped
// @Response: nothing

// @Title: Submit Transaction
// @Route: POST /api/tx
// @Response: {"code": 0}
func (s *Service) HandleSubmit() {}
`

func TestParseEndpoints(t *testing.T) {
	eps, err := parseEndpoints(strings.NewReader(annotated))
	require.NoError(t, err)
	require.Len(t, eps, 2)

	assert.Equal(t, "Get Sale", eps[0].Title)
	assert.Equal(t, "GET", eps[0].Method())
	assert.Equal(t, "/api/sale", eps[0].Path())
	assert.Equal(t, "id=<sale id>", eps[0].Params())

	assert.Equal(t, "POST", eps[1].Method())
	assert.Equal(t, "/api/tx", eps[1].Path())
	assert.Empty(t, eps[1].Params())
	assert.Empty(t, eps[1].Description)
}

func TestCollectAPIHandlers(t *testing.T) {
	eps, err := collect("../../internal/api")
	require.NoError(t, err)

	var paths []string
	for _, ep := range eps {
		paths = append(paths, ep.Path())
	}
	assert.Contains(t, paths, "/api/tx")
	assert.Contains(t, paths, "/api/balance")
	assert.IsNonDecreasing(t, paths)
}

func TestWriteAsciiDoc(t *testing.T) {
	eps, err := parseEndpoints(strings.NewReader(annotated))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeAsciiDoc(&buf, eps))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "= API Reference\n"))
	assert.Contains(t, out, "== Get Sale\n\n`GET /api/sale`")
	assert.Contains(t, out, "* `id=<sale id>`")
	assert.Contains(t, out, "----\n{\"code\": 0}\n----")
}
