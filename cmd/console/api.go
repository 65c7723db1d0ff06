package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jwebster45206/branch-engine/pkg/branch"
	"github.com/jwebster45206/branch-engine/pkg/butterfly"
	"github.com/jwebster45206/branch-engine/pkg/convergence"
	"github.com/jwebster45206/branch-engine/pkg/narrative"
	"github.com/jwebster45206/branch-engine/pkg/quantum"
)

// createBranchResponse mirrors the API's create response.
type createBranchResponse struct {
	Branch  *branch.BranchState `json:"branch"`
	Catalog []narrative.Choice  `json:"catalog"`
}

// resolutionResult mirrors engine.Result over the wire.
type resolutionResult struct {
	Branch            *branch.BranchState    `json:"branch"`
	NextCatalog       []narrative.Choice     `json:"next_catalog"`
	Analysis          butterfly.Analysis     `json:"butterfly_analysis"`
	Derailed          bool                   `json:"derailed"`
	FiredHatch        *narrative.EscapeHatch `json:"fired_hatch,omitempty"`
	ForcedConvergence *convergence.Point     `json:"forced_convergence,omitempty"`
	Quantum           *quantum.Choice        `json:"quantum_choice,omitempty"`
}

func listPremises(client *http.Client, baseURL string) (map[string]string, error) {
	resp, err := client.Get(baseURL + "/v1/premises")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var premises map[string]string
	if err := json.Unmarshal(body, &premises); err != nil {
		return nil, err
	}
	return premises, nil
}

func createBranch(client *http.Client, baseURL string, premiseID string) (*createBranchResponse, error) {
	payload := map[string]string{"premise_id": premiseID}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		baseURL+"/v1/branch",
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to create branch: %s", errorResp.Error)
	}

	var created createBranchResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to parse branch response: %w", err)
	}
	return &created, nil
}

func resolveChoice(client *http.Client, baseURL string, branchID string, choiceID string) (*resolutionResult, error) {
	payload := map[string]string{"choice_id": choiceID}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := client.Post(
		fmt.Sprintf("%s/v1/branch/%s/choice", baseURL, branchID),
		"application/json",
		bytes.NewBuffer(jsonData),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to resolve choice: %s", errorResp.Error)
	}

	var result resolutionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse resolution response: %w", err)
	}
	return &result, nil
}

func getButterflyAnalysis(client *http.Client, baseURL string, branchID string) (*butterfly.Analysis, error) {
	resp, err := client.Get(fmt.Sprintf("%s/v1/branch/%s/butterfly", baseURL, branchID))
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close() // Ignore error in defer
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(body, &errorResp); err != nil {
			return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, fmt.Errorf("failed to get butterfly analysis: %s", errorResp.Error)
	}

	var analysis butterfly.Analysis
	if err := json.Unmarshal(body, &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse butterfly response: %w", err)
	}
	return &analysis, nil
}
