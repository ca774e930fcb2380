// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianPlanner/services/planner/conversation"
	"github.com/AleutianAI/AleutianPlanner/services/planner/datatypes"
	"github.com/AleutianAI/AleutianPlanner/services/planner/execution"
	"github.com/AleutianAI/AleutianPlanner/services/planner/phasecontext"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const conceptYAML = `name: Gratitude Journal
description: A daily journal for things you are grateful for
features:
  - id: f1
    name: Journal entries
    description: Write a short entry every day
    priority: high
  - id: f2
    name: Mood check-in
    description: Pick a mood for the day
    priority: medium
technical:
  needsDatabase: true
`

// testEnv is a temp directory holding a config, a concept and a
// conversation, with the planner environment variables cleared.
type testEnv struct {
	dir          string
	configPath   string
	conceptPath  string
	chatPath     string
	longChatPath string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	for _, key := range []string{"OPENAI_API_KEY", "OPENAI_BASE_URL", "PLANNER_PORT", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}

	dir := t.TempDir()
	env := testEnv{
		dir:          dir,
		configPath:   filepath.Join(dir, "planner.yaml"),
		conceptPath:  filepath.Join(dir, "concept.yaml"),
		chatPath:     filepath.Join(dir, "chat.json"),
		longChatPath: filepath.Join(dir, "long.json"),
	}
	writeFile(t, env.configPath, "regen:\n  debounce_millis: 20\nlogging:\n  level: warn\n")
	writeFile(t, env.conceptPath, conceptYAML)

	chat := []datatypes.ChatMessage{
		{Role: datatypes.RoleUser, Content: "I want a gratitude journal app with a daily mood check-in."},
		{Role: datatypes.RoleAssistant, Content: "Should entries be stored in a database table with a date column?"},
		{Role: datatypes.RoleUser, Content: "Yes, store each entry in the database with the date and the mood."},
		{Role: datatypes.RoleAssistant, Content: "Decided: we will use a SQLite database with an entries table."},
	}
	writeJSON(t, env.chatPath, chat)

	var long []datatypes.ChatMessage
	for i := 0; i < 60; i++ {
		role := datatypes.RoleUser
		if i%2 == 1 {
			role = datatypes.RoleAssistant
		}
		long = append(long, datatypes.ChatMessage{
			Role:    role,
			Content: fmt.Sprintf("Message %d about journal entries, moods and the reminders screen layout.", i),
		})
	}
	writeJSON(t, env.longChatPath, long)
	return env
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// run executes the CLI with --config pointing at the test config.
func (e testEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

// =============================================================================
// Command Tests
// =============================================================================

func TestPlanCmd_JSON(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, err := env.run(t, "plan", env.conceptPath, "--json")
	require.NoError(t, err)

	var plan datatypes.DynamicPhasePlan
	require.NoError(t, json.Unmarshal([]byte(stdout), &plan))
	assert.Equal(t, "Gratitude Journal", plan.ConceptName)
	assert.Equal(t, datatypes.DomainSetup, plan.Phases[0].Domain)
	assert.NoError(t, plan.Validate())
}

func TestPlanCmd_Machine(t *testing.T) {
	env := newTestEnv(t)
	stdout, _, err := env.run(t, "--output", "machine", "plan", env.conceptPath)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stdout, "PHASE\t1\t"), stdout)
	assert.Contains(t, stdout, "\tdatabase\t")
	assert.Contains(t, stdout, "FEATURE\t")
}

func TestPlanCmd_Errors(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "plan", filepath.Join(env.dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(env.dir, "bad.yaml")
	writeFile(t, bad, "description: no name\n")
	_, _, err = env.run(t, "plan", bad)
	assert.Error(t, err)

	_, _, err = env.run(t, "--output", "fancy", "plan", env.conceptPath)
	assert.ErrorContains(t, err, "unknown output mode")

	_, _, err = env.run(t, "plan")
	assert.Error(t, err, "concept file is required")
}

func TestRootCmd_FirstRunCreatesConfig(t *testing.T) {
	env := newTestEnv(t)
	fresh := filepath.Join(env.dir, "nested", "planner.yaml")

	root := newRootCmd()
	var stderr bytes.Buffer
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&stderr)
	root.SetArgs([]string{"--config", fresh, "plan", env.conceptPath})
	require.NoError(t, root.Execute())

	assert.FileExists(t, fresh)
	assert.Contains(t, stderr.String(), "First run detected")
}

func TestContextCmd(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.run(t, "--output", "machine", "context", env.chatPath, "--phase", "database")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "CONTEXT\tdatabase\t"), stdout)
	assert.Contains(t, stdout, "semantic=false")

	stdout, _, err = env.run(t, "context", env.chatPath, "-p", "database", "--json")
	require.NoError(t, err)
	var pc datatypes.PhaseContext
	require.NoError(t, json.Unmarshal([]byte(stdout), &pc))
	assert.Equal(t, datatypes.DomainDatabase, pc.PhaseType)
	assert.NotEmpty(t, pc.RelevantSegments)
	assert.LessOrEqual(t, len([]rune(pc.ContextSummary)), phasecontext.MaxSummaryChars)

	_, _, err = env.run(t, "context", env.chatPath, "--phase", "quantum")
	assert.ErrorContains(t, err, "unknown phase type")
}

func TestCompressCmd(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.run(t, "compress", env.longChatPath, "--max-tokens", "400", "--preserve-last", "4", "--json")
	require.NoError(t, err)
	var out conversation.CompressedConversation
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 60, out.OriginalCount)
	assert.LessOrEqual(t, len(out.RecentMessages), 4)
	assert.NotEqual(t, conversation.OutcomeSkipped, out.Outcome())

	stdout, _, err = env.run(t, "--output", "machine", "compress", env.chatPath)
	require.NoError(t, err)
	assert.NotContains(t, stdout, "OK:")
	assert.Contains(t, stdout, "SQLite database")
}

func TestPromptCmd(t *testing.T) {
	env := newTestEnv(t)

	stdout, _, err := env.run(t, "prompt", env.conceptPath,
		"--phase", "2", "--completed", "1", "--libraries", "React,SQLite", "--conversation", env.chatPath)
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Gratitude Journal: Phase 2 of")
	assert.Contains(t, stdout, "## Completed Phases")
	assert.Contains(t, stdout, "Libraries in use: React, SQLite")

	stdout, _, err = env.run(t, "prompt", env.conceptPath, "--phase", "1", "--json")
	require.NoError(t, err)
	var ec execution.ExecutionContext
	require.NoError(t, json.Unmarshal([]byte(stdout), &ec))
	assert.Equal(t, 1, ec.Phase.Number)

	_, _, err = env.run(t, "prompt", env.conceptPath, "--phase", "99")
	assert.Error(t, err)

	_, _, err = env.run(t, "prompt", env.conceptPath, "--completed", "2")
	assert.Error(t, err, "phase 2 cannot start before its dependencies")
}

func TestScanCmd(t *testing.T) {
	env := newTestEnv(t)
	leaky := filepath.Join(env.dir, "leaky.json")
	writeJSON(t, leaky, []datatypes.ChatMessage{
		{Role: datatypes.RoleUser, Content: "Recipes app please."},
		{Role: datatypes.RoleUser, Content: "My key is AKIA1234567890123456 and mail me at jdoe@example.com"},
	})

	stdout, _, err := env.run(t, "--output", "machine", "scan", leaky)
	require.NoError(t, err)
	assert.Equal(t, "FINDING\t1\t1\tsecret\tAWS_ACCESS_KEY_ID\nFINDING\t1\t1\tpii\tEMAIL_ADDRESS\n", stdout)

	stdout, _, err = env.run(t, "scan", env.chatPath, "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]\n", stdout)
}

// =============================================================================
// Watch Tests
// =============================================================================

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCmd_RegeneratesOnChange(t *testing.T) {
	env := newTestEnv(t)
	var stdout syncBuffer

	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", env.configPath, "--output", "machine", "watch", env.conceptPath})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "Journal entries")
	}, 5*time.Second, 10*time.Millisecond)

	writeFile(t, env.conceptPath, strings.Replace(conceptYAML, "Journal entries", "Gratitude notes", 1))
	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "Gratitude notes")
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not exit after cancel")
	}
}

// =============================================================================
// Serve Tests
// =============================================================================

func newServeApp(t *testing.T, env testEnv) *app {
	t.Helper()
	a := &app{configPath: env.configPath, outputMode: "full"}
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, a.setup(cmd))
	t.Cleanup(func() { _ = a.close() })
	return a
}

func TestNewRouter_ServesPlannerAPI(t *testing.T) {
	env := newTestEnv(t)
	a := newServeApp(t, env)

	router, err := a.newRouter()
	require.NoError(t, err)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	body, err := json.Marshal(datatypes.AppConcept{
		Name:     "Gratitude Journal",
		Features: []datatypes.Feature{{ID: "f1", Name: "Journal entries", Priority: datatypes.PriorityHigh}},
	})
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/plans", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), "aleutian_planner_plans_total")
}

func TestServe_StopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	a := newServeApp(t, env)
	a.cfg.Server.Port = "0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not exit after cancel")
	}
}
