package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"acb/sheet-server/files"
	"github.com/xuri/excelize/v2"
)

func newTestServer(t *testing.T) (*server, http.Handler) {
	s := &server{files: files.NewStore(t.TempDir())}
	return s, s.handler()
}

func do(t *testing.T, h http.Handler, method, target, contentType string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, h http.Handler, target, body string) *httptest.ResponseRecorder {
	return do(t, h, "POST", target, "application/json", bytes.NewBufferString(body))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("invalid JSON %q: %s", rec.Body.String(), err)
	}
	return out
}

type jsonCase struct {
	body   string
	status int
	key    string
	value  any
}

func checkJSON(t *testing.T, h http.Handler, target string, cases []jsonCase) {
	for _, c := range cases {
		rec := postJSON(t, h, target, c.body)
		if rec.Code != c.status {
			t.Errorf("%s %s: status %d != %d (%s)", target, c.body, rec.Code, c.status, rec.Body.String())
			continue
		}
		out := decodeBody(t, rec)
		if c.value != nil && out[c.key] != c.value {
			t.Errorf("%s %s: %s %v != %v", target, c.body, c.key, out[c.key], c.value)
		}
		if c.value == nil && out[c.key] == nil {
			t.Errorf("%s %s: missing %s in %v", target, c.body, c.key, out)
		}
	}
}

func TestHandleMath(t *testing.T) {
	_, h := newTestServer(t)
	checkJSON(t, h, "/math", []jsonCase{
		{`{"type": "sum", "values": [1, "2", {"value": 3}]}`, 200, "result", 6.0},
		{`{"type": "average", "values": [2, 4, 6]}`, 200, "result", 4.0},
		{`{"type": "count", "values": [{"A1": {"value": 1, "style": {}}}, "x", null]}`, 200, "result", 3.0},
		{`{"type": "round", "values": [2.6, 100, 100]}`, 200, "result", 3.0},
		{`{"type": "product", "values": [{"A1": {"value": "2"}}, 5]}`, 200, "result", 10.0},
		{`{"type": "sum", "values": []}`, 400, "error", "no valid numeric values"},
		{`{"type": "sum"}`, 400, "error", "no valid numeric values"},
		{`{"type": "median", "values": [1]}`, 400, "error", "unsupported math operation: median"},
		{`{"type": "sum", "values": [1e308, 1e308]}`, 400, "error", "result out of range: sum"},
		{`{"type": "average", "values": [1e308, 1e308]}`, 200, "result", 1e308},
		{`{"type": "sum", "values": {"a": 1}}`, 400, "error", nil},
		{`not json`, 400, "error", nil},
	})
}

func TestHandleFormula(t *testing.T) {
	_, h := newTestServer(t)
	checkJSON(t, h, "/formula", []jsonCase{
		{`{"formula": "=IF(A1>10,\"High\",\"Low\")", "cells": {"A1": 15}}`, 200, "result", "High"},
		{`{"formula": "=IF(A1>10,\"High\",\"Low\")", "cells": {"A1": {"value": "5", "style": {}}}}`, 200, "result", "Low"},
		{`{"formula": "=IF(A1>10,\"High\",\"Low\")", "cells": {}}`, 200, "result", "Low"},
		{`{"formula": "IF(A1>1,\"a,b\",\"c\")", "cells": {"A1": 2}}`, 200, "result", "a,b"},
		{`{"formula": "=IF(A1>1,B1,0)", "cells": {"A1": 2, "B1": {"value": 7}}}`, 200, "result", "7"},
		{`{"formula": "=SUM(A1:A3)", "cells": {}}`, 400, "error", nil},
		{`{"formula": "=IF(A1>1,\"x\")", "cells": {}}`, 400, "error", nil},
		{`{"cells": {}}`, 400, "error", "formula is required"},
		{`{"formula": "=IF(A1>\"x\",1,2)", "cells": {"A1": 3}}`, 500, "error", nil},
		{`{"formula": "=IF(__import__('os').system('id'),1,2)"}`, 500, "error", nil},
	})
}

func TestAccountsDisabled(t *testing.T) {
	_, h := newTestServer(t)
	for _, target := range []string{"/register", "/login", "/verify-pin"} {
		rec := postJSON(t, h, target, `{"username": "a", "password": "b", "pin": "123456"}`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: %d", target, rec.Code)
		}
	}
}

func TestFileRoutes(t *testing.T) {
	s, h := newTestServer(t)

	rec := do(t, h, "GET", "/files", "", nil)
	if rec.Code != 200 || strings.TrimSpace(rec.Body.String()) != `{"files":[]}` {
		t.Errorf("no username: %d %s", rec.Code, rec.Body.String())
	}

	f := excelize.NewFile()
	f.SetCellValue("Sheet1", "A1", 15)
	f.SetCellValue("Sheet1", "B1", "High")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	content := buf.Bytes()
	if _, err := s.files.Save("alice", "book.xlsx", bytes.NewReader(content)); err != nil {
		t.Fatal(err)
	}

	rec = do(t, h, "GET", "/files?username=alice", "", nil)
	if strings.TrimSpace(rec.Body.String()) != `{"files":["book.xlsx"]}` {
		t.Errorf("list: %s", rec.Body.String())
	}

	rec = do(t, h, "GET", "/download-file?username=alice&fileName=book.xlsx", "", nil)
	if rec.Code != 200 || !bytes.Equal(rec.Body.Bytes(), content) {
		t.Errorf("download: %d, %d bytes", rec.Code, rec.Body.Len())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "book.xlsx") {
		t.Errorf("download disposition: %s", rec.Header().Get("Content-Disposition"))
	}

	rec = do(t, h, "GET", "/file-cells?username=alice&fileName=book.xlsx", "", nil)
	if rec.Code != 200 {
		t.Fatalf("file cells: %d %s", rec.Code, rec.Body.String())
	}
	var cells struct {
		Cells map[string]map[string]any `json:"cells"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cells); err != nil {
		t.Fatal(err)
	}
	if cells.Cells["A1"]["value"] != 15.0 || cells.Cells["B1"]["value"] != "High" {
		t.Errorf("file cells: %v", cells.Cells)
	}

	statuses := map[string]int{
		"/download-file?username=alice&fileName=missing.xlsx": 404,
		"/download-file?username=alice":                       400,
		"/download-file?username=..&fileName=x":               400,
		"/file-cells?username=alice&fileName=missing.xlsx":    404,
	}
	for target, expected := range statuses {
		if rec := do(t, h, "GET", target, "", nil); rec.Code != expected {
			t.Errorf("%s: %d != %d", target, rec.Code, expected)
		}
	}
}

func multipartSample(t *testing.T, rows string, sample []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	if rows != "" {
		mw.WriteField("rows", rows)
	}
	if sample != nil {
		part, err := mw.CreateFormFile("file", "sample.xlsx")
		if err != nil {
			t.Fatal(err)
		}
		part.Write(sample)
	}
	mw.Close()
	return body, mw.FormDataContentType()
}

func TestHandleGenerateRandom(t *testing.T) {
	_, h := newTestServer(t)
	f := excelize.NewFile()
	f.SetSheetRow("Sheet1", "A1", &[]any{"age", "name"})
	f.SetSheetRow("Sheet1", "A2", &[]any{20, "x"})
	f.SetSheetRow("Sheet1", "A3", &[]any{30, "y"})
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	sample := buf.Bytes()

	body, contentType := multipartSample(t, "5", sample)
	rec := do(t, h, "POST", "/generate-random", contentType, body)
	if rec.Code != 200 {
		t.Fatalf("generate: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != xlsxType {
		t.Errorf("content type: %s", rec.Header().Get("Content-Type"))
	}
	out, err := excelize.OpenReader(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	rows, err := out.GetRows("Sheet1")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 6 {
		t.Errorf("expected 6 rows, got %d", len(rows))
	}

	for _, c := range []struct {
		rows   string
		sample []byte
	}{
		{"0", sample},
		{"abc", sample},
		{"5", nil},
		{"5", []byte("junk")},
	} {
		body, contentType := multipartSample(t, c.rows, c.sample)
		if rec := do(t, h, "POST", "/generate-random", contentType, body); rec.Code != 400 {
			t.Errorf("rows %q: %d", c.rows, rec.Code)
		}
	}
}

func TestHelpPage(t *testing.T) {
	_, h := newTestServer(t)
	rec := do(t, h, "GET", "/", "", nil)
	if rec.Code != 200 {
		t.Fatalf("help: %d", rec.Code)
	}
	for _, text := range []string{"POST /math", "POST /formula", "product", "&gt;="} {
		if !strings.Contains(rec.Body.String(), text) {
			t.Errorf("help page is missing %q", text)
		}
	}
	if rec := do(t, h, "GET", "/nope", "", nil); rec.Code != 404 {
		t.Errorf("unknown path: %d", rec.Code)
	}
}

func TestCrossOrigin(t *testing.T) {
	_, h := newTestServer(t)

	req := httptest.NewRequest("OPTIONS", "/formula", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("preflight: %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight headers: %v", rec.Header())
	}

	req = httptest.NewRequest("POST", "/math", strings.NewReader(`{"type": "sum", "values": [1, 2]}`))
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != 200 || rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("cross-origin POST: %d %v", rec.Code, rec.Header())
	}
}
