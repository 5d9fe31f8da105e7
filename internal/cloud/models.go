// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jeranaias/gleam/internal/model"
)

// modelsResponse is the body of GET /models.
type modelsResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		ContextLength int    `json:"context_length"`
		Architecture  struct {
			InputModalities  []string `json:"input_modalities"`
			OutputModalities []string `json:"output_modalities"`
		} `json:"architecture"`
		SupportedParameters []string `json:"supported_parameters"`
	} `json:"data"`
}

// ListModels retrieves the model catalog. The key is optional for this
// endpoint.
func (c *Client) ListModels(ctx context.Context, apiKey string) (model.Catalog, error) {
	if err := c.wait(ctx); err != nil {
		return model.Catalog{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("failed to create request: %w", err)
	}
	if apiKey != "" {
		c.setHeaders(req, apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Catalog{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return model.Catalog{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Catalog{}, errorFromResponse(resp, body)
	}

	var parsed modelsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.Catalog{}, fmt.Errorf("failed to parse models: %w", err)
	}

	infos := make([]model.ModelInfo, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		if m.ID == "" {
			continue
		}
		infos = append(infos, model.ModelInfo{
			ID:                  m.ID,
			Name:                m.Name,
			Description:         m.Description,
			ContextLength:       m.ContextLength,
			InputModalities:     m.Architecture.InputModalities,
			OutputModalities:    m.Architecture.OutputModalities,
			SupportedParameters: m.SupportedParameters,
		})
	}
	c.logger.Debug("listed models", "count", len(infos))
	return model.NewCatalog(infos), nil
}
