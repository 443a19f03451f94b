/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// JSON Schemas for request bodies. Unknown fields are rejected so typos
// in admin tooling surface as 400s instead of silent no-ops.
const (
	loginSchema = `{
	"type": "object",
	"properties": {"password": {"type": "string", "minLength": 1, "maxLength": 512}},
	"required": ["password"],
	"additionalProperties": false
}`

	patchSchema = `{
	"type": "object",
	"properties": {
		"name":           {"type": "string", "minLength": 1, "maxLength": 200},
		"category":       {"type": "string", "minLength": 1, "maxLength": 100},
		"isPremium":      {"type": "boolean"},
		"visible":        {"type": "boolean"},
		"supportsBold":   {"type": "boolean"},
		"supportsItalic": {"type": "boolean"},
		"rating":         {"type": "number", "minimum": 0, "maximum": 5},
		"reviewsCount":   {"type": "integer", "minimum": 0}
	},
	"minProperties": 1,
	"additionalProperties": false
}`

	reorderSchema = `{
	"type": "object",
	"properties": {
		"fontIds":  {"type": "array", "items": {"type": "string", "minLength": 1}, "minItems": 1, "uniqueItems": true},
		"category": {"type": "string"}
	},
	"required": ["fontIds"],
	"additionalProperties": false
}`

	categorySchema = `{
	"type": "object",
	"properties": {"name": {"type": "string", "minLength": 1, "maxLength": 100}},
	"required": ["name"],
	"additionalProperties": false
}`

	layoutSchema = `{
	"type": "object",
	"properties": {
		"text":            {"type": "string", "maxLength": 500},
		"fontSizePx":      {"type": "number"},
		"letterSpacingPx": {"type": "number"},
		"mode":            {"type": "string", "enum": ["", "straight", "none", "arc", "circle"]},
		"curveStrength":   {"type": "number"},
		"circleRadiusPx":  {"type": "number"},
		"rotationDeg":     {"type": "number"},
		"winding":         {"type": "string", "enum": ["", "clockwise", "cw", "outward", "counterclockwise", "ccw", "inward"]}
	},
	"additionalProperties": false
}`
)

// maxJSONBody caps request bodies decoded by decodeJSON.
const maxJSONBody = 1 << 20

var (
	schemaLogin    = mustSchema(loginSchema)
	schemaPatch    = mustSchema(patchSchema)
	schemaReorder  = mustSchema(reorderSchema)
	schemaCategory = mustSchema(categorySchema)
	schemaLayout   = mustSchema(layoutSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid request schema: %v", err))
	}
	return s
}

// errBadRequest marks client errors produced while decoding.
var errBadRequest = errors.New("bad request")

// validateJSON checks body against schema and joins all violations.
func validateJSON(schema *gojsonschema.Schema, body []byte) error {
	res, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", errBadRequest, strings.Join(msgs, "; "))
}

// decodeJSON reads a size-limited body, validates it and unmarshals into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, schema *gojsonschema.Schema, dst any) error {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		b = []byte("{}")
	}
	if err := validateJSON(schema, b); err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
