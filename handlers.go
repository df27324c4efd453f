// This file is part of Sheet Server.
//
// Sheet Server is free software: you can redistribute it and/or modify it under the
// terms of the GNU Affero General Public License as published by the Free Software Foundation,
// either version 3 of the License, or (at your option) any later version.
//
// Sheet Server is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU General Public License along with Sheet Server.
// If not, see https://www.gnu.org/licenses/agpl-3.0.html
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strconv"

	"acb/sheet-server/cellvalue"
	"acb/sheet-server/files"
	"acb/sheet-server/formulas"
	"acb/sheet-server/users"
	"acb/sheet-server/workbook"
	"github.com/a-h/templ"
	"github.com/rs/cors"
)

const (
	maxJSONBytes   = 1 << 20
	maxUploadBytes = 32 << 20
	xlsxType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type server struct {
	users *users.Store // nil when no database is configured
	files *files.Store
}

type route struct {
	Method  string
	Path    string
	Summary string
	handler http.HandlerFunc
}

func (s *server) routes() []route {
	return []route{
		{"POST", "/math", `Aggregate values: {"type": "sum", "values": [...]}`, s.handleMath},
		{"POST", "/formula", `Evaluate an IF formula: {"formula": "=IF(A1>10,\"High\",\"Low\")", "cells": {...}}`, s.handleFormula},
		{"POST", "/register", `Create an account: {"username", "password", "pin"}`, s.handleRegister},
		{"POST", "/login", `Check a password: {"username", "password"}`, s.handleLogin},
		{"POST", "/verify-pin", `Check a PIN: {"username", "pin"}`, s.handleVerifyPin},
		{"POST", "/upload-file", "Store a workbook (multipart username, pin, file)", s.handleUploadFile},
		{"GET", "/files", "List a user's files (?username=)", s.handleListFiles},
		{"GET", "/download-file", "Download a stored file (?username=&fileName=)", s.handleDownloadFile},
		{"GET", "/file-cells", "Read a stored workbook as cells (?username=&fileName=)", s.handleFileCells},
		{"POST", "/generate-random", "Random dataset from a sample workbook (multipart file, rows)", s.handleGenerateRandom},
	}
}

func (s *server) handler() http.Handler {
	mux := http.NewServeMux()
	routes := s.routes()
	for _, rt := range routes {
		mux.HandleFunc(rt.Method+" "+rt.Path, rt.handler)
	}
	mux.Handle("GET /{$}", templ.Handler(helpPage(routes, formulas.Operations())))
	// The spreadsheet UI is served from its own origin.
	return cors.AllowAll().Handler(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Printf("Encoding response: %s", err)
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

func writeError(w http.ResponseWriter, status int, text string) {
	if status >= http.StatusInternalServerError {
		log.Printf("Backend error: %s", text)
	}
	writeJSON(w, status, map[string]string{"error": text})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBytes)).Decode(v)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// writeEvalError maps evaluator failures: bad requests are the caller's
// fault, a logical test that cannot be evaluated is not.
func writeEvalError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, formulas.ErrInvalidInput) ||
		errors.Is(err, formulas.ErrSyntax) ||
		errors.Is(err, formulas.ErrUnsupportedOperation) {
		status = http.StatusBadRequest
	}
	writeError(w, status, err.Error())
}

type mathRequest struct {
	Type   formulas.Operation `json:"type"`
	Values cellvalue.List     `json:"values"`
}

func (s *server) handleMath(w http.ResponseWriter, r *http.Request) {
	var req mathRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := formulas.Aggregate(req.Type, req.Values)
	if err != nil {
		writeEvalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"result": result})
}

type formulaRequest struct {
	Formula string          `json:"formula"`
	Cells   cellvalue.Sheet `json:"cells"`
}

func (s *server) handleFormula(w http.ResponseWriter, r *http.Request) {
	var req formulaRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := formulas.EvaluateFormula(req.Formula, req.Cells)
	if err != nil {
		writeEvalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

type accountRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Pin      string `json:"pin"`
}

func (s *server) accountsEnabled(w http.ResponseWriter) bool {
	if s.users == nil {
		writeError(w, http.StatusServiceUnavailable, "User accounts are not configured")
		return false
	}
	return true
}

func writeUserError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, users.ErrMissingFields),
		errors.Is(err, users.ErrInvalidPin),
		errors.Is(err, users.ErrUsernameTaken):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, users.ErrInvalidCredentials),
		errors.Is(err, users.ErrWrongPin):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !s.accountsEnabled(w) || !decodeJSON(w, r, &req) {
		return
	}
	if err := s.users.Register(r.Context(), req.Username, req.Password, req.Pin); err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "User registered successfully"})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !s.accountsEnabled(w) || !decodeJSON(w, r, &req) {
		return
	}
	if err := s.users.Login(r.Context(), req.Username, req.Password); err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Login successful"})
}

func (s *server) handleVerifyPin(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if !s.accountsEnabled(w) || !decodeJSON(w, r, &req) {
		return
	}
	if err := s.users.VerifyPin(r.Context(), req.Username, req.Pin); err != nil {
		writeUserError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "PIN verified"})
}

func writeFileError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, files.ErrInvalidName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, files.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if !s.accountsEnabled(w) {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	username := r.FormValue("username")
	pin := r.FormValue("pin")
	file, header, err := r.FormFile("file")
	if username == "" || pin == "" || err != nil {
		writeError(w, http.StatusBadRequest, "Username, PIN, and file are required")
		return
	}
	defer file.Close()

	if err := s.users.VerifyPin(r.Context(), username, pin); err != nil {
		writeUserError(w, err)
		return
	}
	if _, err := s.files.Save(username, header.Filename, file); err != nil {
		writeFileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "File uploaded successfully"})
}

func (s *server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeJSON(w, http.StatusOK, map[string][]string{"files": {}})
		return
	}
	names, err := s.files.List(username)
	if err != nil {
		writeFileError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"files": names})
}

func (s *server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	username, fileName := query.Get("username"), query.Get("fileName")
	if username == "" || fileName == "" {
		writeError(w, http.StatusBadRequest, "Username and fileName required")
		return
	}
	f, err := s.files.Open(username, fileName)
	if err != nil {
		writeFileError(w, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeFileError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": info.Name()}))
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *server) handleFileCells(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	username, fileName := query.Get("username"), query.Get("fileName")
	if username == "" || fileName == "" {
		writeError(w, http.StatusBadRequest, "Username and fileName required")
		return
	}
	f, err := s.files.Open(username, fileName)
	if err != nil {
		writeFileError(w, err)
		return
	}
	defer f.Close()
	sheet, err := workbook.ReadCells(f)
	if errors.Is(err, workbook.ErrInvalidWorkbook) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]cellvalue.Sheet{"cells": sheet})
}

func (s *server) handleGenerateRandom(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer file.Close()
	rows, err := strconv.Atoi(r.FormValue("rows"))
	if err != nil || rows <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid row count")
		return
	}

	f, err := workbook.Generate(file, rows, newRand())
	switch {
	case errors.Is(err, workbook.ErrInvalidRowCount),
		errors.Is(err, workbook.ErrEmptySample),
		errors.Is(err, workbook.ErrInvalidWorkbook):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": "RandomDataset.xlsx"}))
	if err := f.Write(w); err != nil {
		log.Printf("Writing random dataset: %s", err)
	}
}

func (rt route) String() string {
	return fmt.Sprintf("%s %s", rt.Method, rt.Path)
}
