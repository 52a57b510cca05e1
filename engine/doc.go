// Package engine executes a resolved agent configuration.
//
// The Engine is a small state machine over core.AgentType: ONE_SHOT makes a
// single model call, REACT loops over model turns and tool calls up to
// MaxIterations, and WORKFLOW runs a multi-agent workflow (map_reduce) by
// delegating to an AgentRunner.
//
// Every model call passes through the admission Gate and is recorded as a
// MODEL trace run; every REACT tool call is recorded as a TOOL run. Tool
// failures are reported back to the model instead of aborting the loop.
//
// Example:
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.Gate = engine.NewGate(func(g *engine.GateOptions) { g.MaxConcurrent = 8 })
//	    o.Collector = collector
//	})
//	res, err := eng.Run(ctx, &engine.Execution{
//	    Config:  cfg,
//	    Model:   m,
//	    ModelID: "openai:gpt-4o-mini",
//	    Tools:   bound,
//	    Args:    map[string]any{"input": "hello"},
//	})
package engine
