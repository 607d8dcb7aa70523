// Package tools implements the agent's tool functions. Each tool runs its own
// short-lived react agent with a private toolset and returns the final text.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"

	"github.com/RRaffay/Finance-Data-Agent/internal/llm"
	"github.com/RRaffay/Finance-Data-Agent/internal/sandbox"
)

// Tool names exposed to the session agent.
const (
	ChartGenerationName     = "chart_generation"
	FileAnalysisName        = "file_analysis"
	FinancialCalculatorName = "financial_calculator"
)

// Config wires a Toolkit to its models and sandbox.
type Config struct {
	Factory    llm.ModelFactory
	Runner     sandbox.Runner
	Loader     document.Loader
	ChartModel string
	ToolModel  string
	ImagesDir  string
	MaxSteps   int
	Tracer     *llm.Tracer
	Logger     *slog.Logger
}

// Toolkit builds the session agent's tools.
type Toolkit struct {
	cfg Config
}

// New creates a toolkit.
func New(cfg Config) *Toolkit {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Toolkit{cfg: cfg}
}

// ChartInput is the chart_generation argument.
type ChartInput struct {
	Instructions string `json:"instructions" jsonschema_description:"Instructions to generate the chart. Instructions should be clear and concise. Provide the numbers to generate the chart and any other calculations"`
}

// FileAnalysisInput is the file_analysis argument.
type FileAnalysisInput struct {
	FilePath  string `json:"file_path" jsonschema_description:"Path of the file to analyze. Has to be with respect to the root directory."`
	Objective string `json:"objective" jsonschema_description:"Objective of the analysis. More precise the objective, better the analysis."`
}

// CalculatorInput is the financial_calculator argument.
type CalculatorInput struct {
	FilePath string `json:"file_path" jsonschema_description:"Path of the file to analyze. Has to be with respect to the root directory."`
	Metric   string `json:"metric" jsonschema_description:"Financial Metric to be calculated."`
	Context  string `json:"context" jsonschema_description:"Context of the analysis. This will help the tool to better understand the analysis."`
}

// Tools returns chart_generation, file_analysis and financial_calculator.
func (k *Toolkit) Tools() ([]tool.BaseTool, error) {
	chart, err := utils.InferTool(ChartGenerationName, chartToolDesc, k.ChartGeneration)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", ChartGenerationName, err)
	}
	analysis, err := utils.InferTool(FileAnalysisName, fileAnalysisToolDesc, k.FileAnalysis)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", FileAnalysisName, err)
	}
	calc, err := utils.InferTool(FinancialCalculatorName, calculatorToolDesc, k.FinancialCalculator)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", FinancialCalculatorName, err)
	}
	return []tool.BaseTool{chart, analysis, calc}, nil
}

// Names lists the tool names in the order Tools returns them.
func Names() []string {
	return []string{ChartGenerationName, FileAnalysisName, FinancialCalculatorName}
}

// ChartGeneration has an inner agent write and run plotting code that saves
// an image under the images directory.
func (k *Toolkit) ChartGeneration(ctx context.Context, in *ChartInput) (string, error) {
	py := k.newREPL()
	defer py.Close()

	python, err := k.pythonTool(py, false)
	if err != nil {
		return k.failure(ChartGenerationName, &AgentError{Tool: ChartGenerationName, Op: "build", Err: err}), nil
	}
	return k.invoke(ctx, ChartGenerationName, k.cfg.ChartModel,
		chartSystemMessage(k.cfg.ImagesDir), in.Instructions,
		[]tool.BaseTool{python}), nil
}

// FileAnalysis has an inner agent read one file and work towards an objective.
func (k *Toolkit) FileAnalysis(ctx context.Context, in *FileAnalysisInput) (string, error) {
	py := k.newREPL()
	defer py.Close()

	inner, err := k.analysisTools(py)
	if err != nil {
		return k.failure(FileAnalysisName, &AgentError{Tool: FileAnalysisName, Op: "build", Err: err}), nil
	}
	human := fmt.Sprintf("Objective: %s. \nFile Path:%s", in.Objective, in.FilePath)
	return k.invoke(ctx, FileAnalysisName, k.cfg.ToolModel, fileAnalysisSystemMessage, human, inner), nil
}

// FinancialCalculator has an inner agent compute one metric from a file.
func (k *Toolkit) FinancialCalculator(ctx context.Context, in *CalculatorInput) (string, error) {
	py := k.newREPL()
	defer py.Close()

	inner, err := k.analysisTools(py)
	if err != nil {
		return k.failure(FinancialCalculatorName, &AgentError{Tool: FinancialCalculatorName, Op: "build", Err: err}), nil
	}
	human := fmt.Sprintf("Metric: %s. \n\nFile:\n%s.\n\nContext: %s", in.Metric, in.FilePath, in.Context)
	return k.invoke(ctx, FinancialCalculatorName, k.cfg.ToolModel, calculatorSystemMessage, human, inner), nil
}

func (k *Toolkit) newREPL() *repl {
	return &repl{runner: k.cfg.Runner}
}

func (k *Toolkit) analysisTools(py *repl) ([]tool.BaseTool, error) {
	python, err := k.pythonTool(py, true)
	if err != nil {
		return nil, err
	}
	content, err := k.fileContentTool()
	if err != nil {
		return nil, err
	}
	return []tool.BaseTool{python, content}, nil
}

// invoke runs one inner agent and converts its outcome to model-facing text.
func (k *Toolkit) invoke(ctx context.Context, name, modelName, system, human string, inner []tool.BaseTool) string {
	reply, err := k.run(ctx, name, modelName, system, human, inner)
	if errors.Is(err, ErrEmptyReply) && name == ChartGenerationName {
		// Only the file tools report an empty reply as a read failure.
		return ""
	}
	if err != nil {
		return k.failure(name, err)
	}
	return reply
}

func (k *Toolkit) run(ctx context.Context, name, modelName, system, human string, inner []tool.BaseTool) (string, error) {
	cm, err := k.cfg.Factory(ctx, modelName)
	if err != nil {
		return "", &AgentError{Tool: name, Op: "model", Err: err}
	}

	ag, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: cm,
		ToolsConfig:      compose.ToolsNodeConfig{Tools: inner},
		MaxStep:          k.cfg.MaxSteps,
	})
	if err != nil {
		return "", &AgentError{Tool: name, Op: "build", Err: err}
	}

	msg, err := ag.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(human),
	}, k.cfg.Tracer.AgentOptions()...)
	if err != nil {
		return "", &AgentError{Tool: name, Op: "generate", Err: err}
	}
	if msg == nil || msg.Content == "" {
		return "", ErrEmptyReply
	}
	return msg.Content, nil
}

func (k *Toolkit) failure(name string, err error) string {
	k.cfg.Logger.Error("tool failed", "tool", name, "error", err)
	if errors.Is(err, ErrEmptyReply) {
		return fileContentFailed
	}
	return fmt.Sprintf("Error analyzing file %v", err)
}
