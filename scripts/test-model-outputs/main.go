// test-model-outputs tests LLM response parsing across multiple models.
// It sends the stage 2 problem-generation prompt to each model and verifies
// the JSON extraction produces the expected problem-statement shape.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/llm"
	"github.com/zelta-inc/zelta-engine/pkg/models"
	"github.com/zelta-inc/zelta-engine/pkg/prompts"
)

// Model defines a model to test. Models whose API key is not configured in
// the environment are skipped.
type Model struct {
	Name      string
	Provider  string
	Model     string
	KeyEnvVar string
}

var defaultModels = []Model{
	{
		Name:      "gpt-4o",
		Provider:  llm.ProviderOpenAI,
		Model:     "gpt-4o",
		KeyEnvVar: "OPENAI_API_KEY",
	},
	{
		Name:      "gpt-4o-mini",
		Provider:  llm.ProviderOpenAI,
		Model:     "gpt-4o-mini",
		KeyEnvVar: "OPENAI_API_KEY",
	},
	{
		Name:      "claude-sonnet-4-5",
		Provider:  llm.ProviderAnthropic,
		Model:     "claude-sonnet-4-5",
		KeyEnvVar: "ANTHROPIC_API_KEY",
	},
}

// sampleAnalysis stands in for a stage 1 result so the stage 2 prompt can be
// rendered without a live project.
const sampleAnalysis = `The document describes a mid-sized regional hospital network struggling with
patient scheduling. Appointment no-show rates run near 20%, specialist wait
times average six weeks, and the three clinics use incompatible scheduling
systems. Staff spend significant time on phone-based rebooking. The network
recently received funding earmarked for operational modernization and has an
in-house IT team of four. Patient demographics skew older, with limited
smartphone adoption in the rural catchment area.`

const sampleDocument = `Regional Health Network operational review, fiscal year summary.
Scheduling operations: 31,400 appointments booked across three clinics.
No-show rate: 19.7% (industry benchmark: 5-7%). Average specialist lead
time: 41 days. Rebooking handled by phone; average call duration 11
minutes. Systems in use: MediBook v2 (Clinic A), PracticeSoft (Clinic B),
paper ledger with weekly spreadsheet reconciliation (Clinic C rural site).`

func main() {
	// Parse flags
	timeout := flag.Duration("timeout", 120*time.Second, "Timeout for each model call")
	flag.Parse()

	// Create logger
	logConfig := zap.NewDevelopmentConfig()
	logConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	logger, _ := logConfig.Build()
	defer logger.Sync()

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("LLM Response Format Test")
	fmt.Println("Testing stage 2 JSON extraction across multiple models")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	ctx := context.Background()
	prompt := prompts.Stage2Problems(sampleAnalysis, sampleDocument).Render()

	results := make(map[string]TestResult)
	for _, model := range defaultModels {
		fmt.Printf("\n%s\n", strings.Repeat("-", 80))
		fmt.Printf("Testing: %s (%s)\n", model.Name, model.Provider)
		fmt.Printf("%s\n\n", strings.Repeat("-", 80))

		apiKey := os.Getenv(model.KeyEnvVar)
		if apiKey == "" {
			fmt.Printf("SKIP: %s not set\n", model.KeyEnvVar)
			continue
		}

		result := testModel(ctx, model, apiKey, prompt, logger, *timeout)
		results[model.Name] = result

		printResult(result)
	}

	// Print summary
	fmt.Printf("\n%s\n", strings.Repeat("=", 80))
	fmt.Println("SUMMARY")
	fmt.Printf("%s\n\n", strings.Repeat("=", 80))

	if len(results) == 0 {
		fmt.Println("No models tested; set OPENAI_API_KEY and/or ANTHROPIC_API_KEY.")
		os.Exit(1)
	}

	allPassed := true
	for name, result := range results {
		status := "✓ PASS"
		if !result.Success {
			status = "✗ FAIL"
			allPassed = false
		}
		fmt.Printf("%s: %s\n", status, name)
		if result.Error != "" {
			fmt.Printf("  Error: %s\n", result.Error)
		}
	}

	if allPassed {
		fmt.Println("\nAll models passed!")
		os.Exit(0)
	} else {
		fmt.Println("\nSome models failed.")
		os.Exit(1)
	}
}

type TestResult struct {
	Success       bool
	Error         string
	RawResponse   string
	ExtractedJSON string
	ProblemCount  int
	DurationMs    int64
}

// problemsShape mirrors what the stage 2 prompt instructs the model to return.
type problemsShape struct {
	ProblemStatements []struct {
		Problem     string `json:"problem"`
		Explanation string `json:"explanation"`
	} `json:"problem_statements"`
}

func testModel(ctx context.Context, model Model, apiKey, prompt string, logger *zap.Logger, timeout time.Duration) TestResult {
	result := TestResult{}
	start := time.Now()

	// Create context with timeout
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	generator, err := llm.NewGenerator(&llm.Config{
		Provider: model.Provider,
		APIKey:   apiKey,
		Model:    model.Model,
	}, logger)
	if err != nil {
		result.Error = fmt.Sprintf("Failed to create generator: %v", err)
		return result
	}

	// Call model
	fmt.Println("Sending prompt...")
	raw, err := generator.GenerateText(ctx, prompt)
	if err != nil {
		result.Error = fmt.Sprintf("API call failed: %v", err)
		return result
	}

	result.DurationMs = time.Since(start).Milliseconds()
	result.RawResponse = raw

	// Print raw response (truncated)
	fmt.Println("\n--- Raw Response (first 800 chars) ---")
	truncated := raw
	if len(truncated) > 800 {
		truncated = truncated[:800] + "..."
	}
	fmt.Println(truncated)
	fmt.Println("--- End Raw Response ---")
	fmt.Printf("\nDuration: %dms\n", result.DurationMs)

	// Try to extract JSON
	fmt.Println("\n--- JSON Extraction ---")
	extraction := llm.Extract(raw)
	if !extraction.Parsed {
		result.Error = "no valid JSON object found in response"
		fmt.Printf("ERROR: %s\n", result.Error)
		return result
	}
	result.ExtractedJSON = extraction.Content
	fmt.Println("JSON extraction: SUCCESS")

	// Parse and validate the contract shape
	var parsed problemsShape
	if err := json.Unmarshal([]byte(extraction.Content), &parsed); err != nil {
		result.Error = fmt.Sprintf("JSON parse failed: %v", err)
		return result
	}

	result.ProblemCount = len(parsed.ProblemStatements)
	fmt.Printf("problem_statements: %d items (expected %d)\n",
		result.ProblemCount, models.ProblemStatementCount)

	emptyFields := 0
	for i, p := range parsed.ProblemStatements {
		if strings.TrimSpace(p.Problem) == "" || strings.TrimSpace(p.Explanation) == "" {
			emptyFields++
			fmt.Printf("  - item %d: MISSING or EMPTY field\n", i+1)
			continue
		}
		fmt.Printf("  - %q\n", truncateString(p.Problem, 60))
	}

	result.Success = result.ProblemCount == models.ProblemStatementCount && emptyFields == 0
	return result
}

func printResult(result TestResult) {
	fmt.Println("\n--- Test Result ---")
	if result.Success {
		fmt.Println("Status: ✓ PASS")
	} else {
		fmt.Println("Status: ✗ FAIL")
		if result.Error != "" {
			fmt.Printf("Error: %s\n", result.Error)
		}
	}
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
