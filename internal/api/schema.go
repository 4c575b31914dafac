// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WhiskeyTracker Contributors

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaBaseURL prefixes the $id of every request schema.
const SchemaBaseURL = "https://whiskeytracker.dev/schemas/api/"

const maxBodyBytes = 1 << 20

// RegisterRequest is the body of POST /api/users/register.
type RegisterRequest struct {
	Username string `json:"username" jsonschema:"minLength=3,maxLength=50"`
	Email    string `json:"email" jsonschema:"format=email"`
	Password string `json:"password" jsonschema:"minLength=8,maxLength=72"`
}

// PasswordResetRequest is the body of POST /api/users/request-password-reset.
type PasswordResetRequest struct {
	Email string `json:"email" jsonschema:"format=email"`
}

// ResetPasswordRequest is the body of POST /api/users/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password" jsonschema:"minLength=8,maxLength=72"`
}

type requestSchema struct {
	name  string
	title string
	value any
}

var requestSchemas = []requestSchema{
	{"register", "Register user", &RegisterRequest{}},
	{"request-password-reset", "Request password reset", &PasswordResetRequest{}},
	{"reset-password", "Reset password", &ResetPasswordRequest{}},
}

// SchemaNames lists the request schemas in a stable order.
func SchemaNames() []string {
	names := make([]string, 0, len(requestSchemas))
	for _, s := range requestSchemas {
		names = append(names, s.name)
	}
	return names
}

// GenerateSchema returns the indented JSON Schema for the named request body.
func GenerateSchema(name string) ([]byte, error) {
	for _, s := range requestSchemas {
		if s.name == name {
			return generate(s)
		}
	}
	return nil, oops.Code("SCHEMA_UNKNOWN").With("name", name).Errorf("unknown request schema")
}

func generate(s requestSchema) ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(s.value)
	schema.ID = jsonschema.ID(SchemaBaseURL + s.name + ".schema.json")
	schema.Title = "WhiskeyTracker " + s.title

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_GENERATE_FAILED").With("name", s.name).Wrap(err)
	}
	return data, nil
}

// validator holds the compiled request schemas.
type validator struct {
	schemas map[string]*jschema.Schema
}

func newValidator() (*validator, error) {
	c := jschema.NewCompiler()
	c.AssertFormat()

	v := &validator{schemas: make(map[string]*jschema.Schema, len(requestSchemas))}
	for _, s := range requestSchemas {
		data, err := generate(s)
		if err != nil {
			return nil, err
		}
		doc, err := jschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("name", s.name).Wrap(err)
		}
		url := SchemaBaseURL + s.name + ".schema.json"
		if err := c.AddResource(url, doc); err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("name", s.name).Wrap(err)
		}
		compiled, err := c.Compile(url)
		if err != nil {
			return nil, oops.Code("SCHEMA_COMPILE_FAILED").With("name", s.name).Wrap(err)
		}
		v.schemas[s.name] = compiled
	}
	return v, nil
}

// decode reads the JSON body, validates it against the named schema and
// unmarshals it into dst.
func (v *validator) decode(w http.ResponseWriter, r *http.Request, name string, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return unreadableBody(err, "request body could not be read")
	}
	inst, err := jschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return invalidRequest(FieldError{Msg: "request body is not valid JSON"})
	}

	schema, ok := v.schemas[name]
	if !ok {
		return oops.Code("SCHEMA_UNKNOWN").With("name", name).Errorf("unknown request schema")
	}
	if err := schema.Validate(inst); err != nil {
		var ve *jschema.ValidationError
		if errors.As(err, &ve) {
			return invalidRequest(fieldErrors(ve)...)
		}
		return invalidRequest(FieldError{Msg: err.Error()})
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return invalidRequest(FieldError{Msg: "request body does not match the expected types"})
	}
	return nil
}

// fieldErrors flattens a validation error into its leaf causes.
func fieldErrors(ve *jschema.ValidationError) []FieldError {
	if len(ve.Causes) == 0 {
		msg := "invalid value"
		if out := ve.BasicOutput(); out.Error != nil {
			msg = out.Error.String()
		}
		loc := ""
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		return []FieldError{{Loc: loc, Msg: msg}}
	}

	var out []FieldError
	for _, cause := range ve.Causes {
		out = append(out, fieldErrors(cause)...)
	}
	return out
}
