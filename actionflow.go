// Package actionflow provides a top-level entry point for assembling and
// using the action execution engine with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/actionflow"
//
//	eng, err := actionflow.New()
//	eng, err := actionflow.New(actionflow.WithConfigFile("actionflow.yaml"))
//	eng, err := actionflow.New(actionflow.WithConfig(cfg), actionflow.WithLogger(logger))
//
//	out := eng.Run(ctx, myAction, params, executor.WithMaxRetries(3))
//	h, _ := eng.RunAsync(ctx, myAction, params)
//	out = eng.Await(ctx, h, 5*time.Second)
//
// The engine wires together the executor (sync + async execution, retry,
// compensation), the plan graph, and the workflow interpreter. Sub-packages
// remain directly usable; this package only re-exports the types callers
// touch most often.
package actionflow

import (
	"github.com/BaSui01/actionflow/action"
	"github.com/BaSui01/actionflow/executor"
	"github.com/BaSui01/actionflow/plan"
	"github.com/BaSui01/actionflow/types"
	"github.com/BaSui01/actionflow/workflow"
)

// Re-export the data-model types so simple callers never need to import
// the sub-packages.

// Action is the unit-of-work contract executed by the engine.
type Action = action.Action

// Metadata carries an action's declarative contract.
type Metadata = action.Metadata

// Outcome is the tagged result of one execution.
type Outcome = types.Outcome

// Error is the engine's structured error.
type Error = types.Error

// AsyncHandle references an in-flight asynchronous execution.
type AsyncHandle = executor.AsyncHandle

// Plan is a named dependency graph of instructions.
type Plan = plan.Plan

// Workflow is an ordered workflow definition.
type Workflow = workflow.Definition

// NewPlan creates an empty plan.
var NewPlan = plan.New

// BuildPlan builds a plan from an ordered declaration list.
var BuildPlan = plan.Build
