// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// moeroute is a local inspection CLI for the sparse MoE tool router: it runs
// a single Route call against the default expert catalog and prints the
// selected experts and rendered tool set.
//
// Usage:
//
//	moeroute --task "list the files in this repo" --classification FileOperation
//	moeroute --task "open the browser and check the news" --trace
//
// With --trace, spans are exported to stdout via stdouttrace, mirroring how
// the teacher's service binary wires its tracer provider at startup, so a
// developer can see the moe.Router.Route span tree for a single call without
// standing up a collector.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/aleutian/moerouter/internal/moe"
)

func main() {
	var (
		taskText        string
		classificationF string
		workflowName    string
		enableTrace     bool
	)

	root := &cobra.Command{
		Use:   "moeroute",
		Short: "Run a single MoE router Route call and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(taskText, classificationF, workflowName, enableTrace)
		},
	}
	root.Flags().StringVar(&taskText, "task", "", "Task text to route")
	root.Flags().StringVar(&classificationF, "classification", "", "Classification kind, e.g. FileOperation, GitOperation, Browser (default: General)")
	root.Flags().StringVar(&workflowName, "workflow", "", "Workflow name; sets classification to Workflow(name) and overrides --classification")
	root.Flags().BoolVar(&enableTrace, "trace", false, "Export spans to stdout via stdouttrace")

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "moeroute: %v\n", err)
		os.Exit(1)
	}
}

func run(taskText, classificationF, workflowName string, enableTrace bool) error {
	if enableTrace {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("build stdout trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		otel.SetTracerProvider(tp)
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	classification, err := resolveClassification(classificationF, workflowName)
	if err != nil {
		return err
	}

	cat, err := moe.GetCatalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	cfg := moe.DefaultConfig()
	router := moe.NewRouter(cfg, cat, sampleSchemaProvider(cat), moe.DefaultTokenEstimator(), slog.Default())
	defer router.Close()

	result := router.Route(context.Background(), taskText, classification)

	enc := json.NewEncoder(os.Stdout)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}

// resolveClassification maps the CLI's flat string flags onto a
// moe.TaskClassification. An empty classification and empty workflow name
// both resolve to moe.General. Because a classification is always passed,
// an empty --task is scored like any other task rather than taking the
// router's empty-input (shared-tools-only) path.
func resolveClassification(classificationF, workflowName string) (moe.TaskClassification, error) {
	if workflowName != "" {
		return moe.Workflow(workflowName), nil
	}
	switch classificationF {
	case "", "General":
		return moe.General, nil
	case "Calendar":
		return moe.Calendar, nil
	case "FileOperation":
		return moe.FileOperation, nil
	case "GitOperation":
		return moe.GitOperation, nil
	case "CodeAnalysis":
		return moe.CodeAnalysis, nil
	case "Browser":
		return moe.Browser, nil
	case "ArxivResearch":
		return moe.ArxivResearch, nil
	case "Messaging":
		return moe.Messaging, nil
	case "Music":
		return moe.Music, nil
	case "HomeKit":
		return moe.HomeKit, nil
	case "DeepResearch":
		return moe.DeepResearch, nil
	default:
		return moe.TaskClassification{}, fmt.Errorf("unknown classification %q", classificationF)
	}
}

// sampleSchemaProvider builds a minimal but real StaticSchemaProvider so
// moeroute can render tool output without depending on the host agent's
// actual tool registry, which lives outside this module.
func sampleSchemaProvider(cat *moe.Catalog) moe.StaticSchemaProvider {
	p := make(moe.StaticSchemaProvider)
	add := func(name string) {
		if _, ok := p[name]; ok {
			return
		}
		p[name] = moe.ToolSchema{
			Name:        name,
			Description: fmt.Sprintf("Performs the %s operation.", name),
			Summary:     name,
		}
	}
	for _, t := range cat.SharedTools() {
		add(t)
	}
	for _, e := range cat.AllExperts() {
		for _, t := range e.DomainTools {
			add(t)
		}
	}
	return p
}
