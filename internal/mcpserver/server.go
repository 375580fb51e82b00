// Package mcpserver exposes the deterministic parts of ClearBound as MCP
// tools: risk parameters, the five-mode strategy map, output validation and
// the simulation matrix. No tool calls a text-generation provider.
package mcpserver

import (
	"context"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/useclearbound-netizen/clearbound-v2/internal/normalize"
	"github.com/useclearbound-netizen/clearbound-v2/internal/qc"
	"github.com/useclearbound-netizen/clearbound-v2/internal/scoring"
	"github.com/useclearbound-netizen/clearbound-v2/internal/simulate"
)

// Server wraps the MCP SDK server and the collaborators its tools use.
type Server struct {
	MCPServer *sdkmcp.Server

	model  scoring.Model
	qc     *qc.Validator
	matrix simulate.Matrix
	log    *slog.Logger
}

// NewServer creates a server with all tools registered. model is the
// default risk model; callers may override it per call.
func NewServer(version string, model scoring.Model, validator *qc.Validator, logger *slog.Logger) (*Server, error) {
	matrix, err := simulate.Load()
	if err != nil {
		return nil, fmt.Errorf("mcpserver: %w", err)
	}
	s := &Server{
		MCPServer: sdkmcp.NewServer(&sdkmcp.Implementation{Name: "clearbound", Version: version}, nil),
		model:     model,
		qc:        validator,
		matrix:    matrix,
		log:       logger.With("component", "mcp"),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "compute_parameters",
		Description: "Normalize a ClearBound request state and compute its risk parameters. Also lists required fields that are missing.",
	}, s.handleComputeParameters)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "strategy_map",
		Description: "Score the five failure modes for a resolved situation and return tiers, presets and drivers.",
	}, s.handleStrategyMap)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "validate_output",
		Description: "Run the quality gate over a candidate artifact for a package and strategy controls.",
	}, s.handleValidateOutput)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "run_simulation",
		Description: "Run the embedded simulation matrix through the strategy map and summarize tier counts.",
	}, s.handleRunSimulation)
}

// --- Tool input/output types ---

type computeParametersInput struct {
	State map[string]any `json:"state" jsonschema:"request state, flat or wrapped in a state key"`
	Model string         `json:"model,omitempty" jsonschema:"aggregate or strategy_map (default: server setting)"`
}

type computeParametersOutput struct {
	Model       string   `json:"model"`
	OverallTier string   `json:"overall_tier"`
	Missing     []string `json:"missing"`
	Parameters  any      `json:"parameters"`
}

type strategyMapInput struct {
	Situation scoring.Situation `json:"situation" jsonschema:"resolved situation signals"`
}

type strategyMapOutput struct {
	Version     string `json:"version"`
	OverallTier string `json:"overall_tier"`
	Map         any    `json:"map"`
}

type validateOutputInput struct {
	Package   string         `json:"package" jsonschema:"message, email or bundle"`
	Candidate map[string]any `json:"candidate" jsonschema:"the parsed model output"`
	Tone      string         `json:"tone,omitempty"`
	Detail    string         `json:"detail,omitempty"`
	Direction string         `json:"direction,omitempty"`
	Objective string         `json:"action_objective,omitempty"`
}

type validateOutputOutput struct {
	OK       bool     `json:"ok"`
	Issues   []string `json:"issues"`
	Warnings []string `json:"warnings"`
}

type runSimulationInput struct {
	Full bool `json:"full,omitempty" jsonschema:"include per-case results"`
}

type runSimulationOutput struct {
	Count        int            `json:"count"`
	TierCounts   map[string]int `json:"tier_counts"`
	ExtremeCount int            `json:"extreme_count"`
	Results      any            `json:"results,omitempty"`
}

// --- Handlers ---

func (s *Server) handleComputeParameters(_ context.Context, _ *sdkmcp.CallToolRequest, input computeParametersInput) (*sdkmcp.CallToolResult, computeParametersOutput, error) {
	model := s.model
	if input.Model != "" {
		m, err := scoring.New(input.Model)
		if err != nil {
			return nil, computeParametersOutput{}, err
		}
		model = m
	}

	state := normalize.FromValue(input.State)
	params := model.Compute(state)
	s.log.Debug("compute_parameters", "model", params.Model, "tier", params.OverallTier)

	return nil, computeParametersOutput{
		Model:       params.Model,
		OverallTier: string(params.OverallTier),
		Missing:     nonNil(state.Missing()),
		Parameters:  params,
	}, nil
}

func (s *Server) handleStrategyMap(_ context.Context, _ *sdkmcp.CallToolRequest, input strategyMapInput) (*sdkmcp.CallToolResult, strategyMapOutput, error) {
	m := scoring.ComputeMap(input.Situation)
	return nil, strategyMapOutput{
		Version:     m.Version,
		OverallTier: string(m.RiskProfile.OverallTier),
		Map:         m,
	}, nil
}

func (s *Server) handleValidateOutput(_ context.Context, _ *sdkmcp.CallToolRequest, input validateOutputInput) (*sdkmcp.CallToolResult, validateOutputOutput, error) {
	if input.Candidate == nil {
		return nil, validateOutputOutput{}, fmt.Errorf("candidate is required")
	}
	res := s.qc.Validate(qc.Package(input.Package), input.Candidate, qc.Controls{
		Tone:      input.Tone,
		Detail:    input.Detail,
		Direction: input.Direction,
		Objective: input.Objective,
	})
	return nil, validateOutputOutput{
		OK:       res.OK,
		Issues:   nonNil(res.Issues),
		Warnings: nonNil(res.Warnings),
	}, nil
}

func (s *Server) handleRunSimulation(_ context.Context, _ *sdkmcp.CallToolRequest, input runSimulationInput) (*sdkmcp.CallToolResult, runSimulationOutput, error) {
	sum := simulate.Run(s.matrix, input.Full)
	out := runSimulationOutput{
		Count:        sum.Count,
		TierCounts:   make(map[string]int, len(sum.TierCounts)),
		ExtremeCount: sum.QCSummary.ExtremeCount,
	}
	for t, n := range sum.TierCounts {
		out.TierCounts[string(t)] = n
	}
	if input.Full {
		out.Results = sum.Results
	}
	return nil, out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
