package integration_tests

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vk/blueetlcore/internal/app"
	"github.com/vk/blueetlcore/internal/hcl"
)

// Test for: invalid hcl is rejected
func TestErrorHandling_InvalidHCL_IsRejected(t *testing.T) {
	// --- Arrange ---
	// Define an HCL string with a clear syntax error (a missing closing brace).
	invalidHCL := `
		step "select" "A" {
			args = {
		// Missing closing brace here
	`
	tempDir := t.TempDir()
	pipelinePath := filepath.Join(tempDir, "main.hcl")
	if err := os.WriteFile(pipelinePath, []byte(invalidHCL), 0600); err != nil {
		t.Fatalf("failed to write hcl file: %v", err)
	}
	testApp, out, _ := app.SetupAppTest(t, app.Config{PipelinePath: pipelinePath}, hcl.NewLoader(), nil)

	// --- Act ---
	_, runErr := testApp.Run(context.Background())

	// --- Assert ---
	if runErr == nil {
		t.Fatal("app.Run() should have returned an error for invalid HCL, but it returned nil")
	}
	if !strings.Contains(runErr.Error(), "failed to load pipeline") {
		t.Errorf("expected error message to indicate a loading failure, but got: %s", runErr.Error())
	}
	if out.String() != "" {
		t.Errorf("expected no report for a pipeline that never started, got:\n%s", out.String())
	}
	if testApp.Dispatcher().Stats().Submitted != 0 {
		t.Error("no job should be submitted when loading fails")
	}
}
