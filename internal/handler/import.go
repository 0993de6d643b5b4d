package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v6"

	apperrors "github.com/fitforge/wearable-sync-go/internal/errors"
	"github.com/fitforge/wearable-sync-go/internal/httputil"
	"github.com/fitforge/wearable-sync-go/internal/middleware"
	"github.com/fitforge/wearable-sync-go/internal/service"
)

// importRequestSchema validates the request envelope only. Row-level
// problems (a missing date, say) are reported per row in the response body,
// not as a 400 for the whole batch.
const importRequestSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["format", "data"],
  "properties": {
    "format": {"enum": ["csv", "json"]},
    "data": {
      "type": "array",
      "minItems": 1,
      "maxItems": 1000,
      "items": {"type": "object"}
    }
  }
}`

type importRequest struct {
	Format string              `json:"format"`
	Data   []service.ImportRow `json:"data"`
}

// Importer is the slice of the import service this endpoint uses.
type Importer interface {
	Import(ctx context.Context, userID string, rows []service.ImportRow) service.ImportResult
}

var _ Importer = (*service.ImportService)(nil)

// ImportHandler accepts pre-parsed CSV/JSON rows from the frontend.
type ImportHandler struct {
	importer Importer
	schema   *jsonschema.Schema
}

func NewImportHandler(importer Importer) *ImportHandler {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(importRequestSchema)))
	if err != nil {
		panic(err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("import-request.json", doc); err != nil {
		panic(err)
	}
	return &ImportHandler{
		importer: importer,
		schema:   compiler.MustCompile("import-request.json"),
	}
}

func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "unreadable request body"))
		return
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}
	if err := h.schema.Validate(doc); err != nil {
		httputil.WriteError(w, apperrors.ValidationError(err.Error()))
		return
	}

	var req importRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteError(w, apperrors.InvalidInput("body", "malformed JSON"))
		return
	}

	result := h.importer.Import(r.Context(), user.ID, req.Data)
	httputil.WriteJSON(w, http.StatusOK, result)
}
