package engine

import (
	"context"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/model"
)

// runOneShot makes exactly one model call. Tools are not offered.
func runOneShot(ctx context.Context, e *Engine, x *Execution) (*core.Result, error) {
	resp, err := e.callModel(ctx, x, model.Request{
		Contents:       BuildContents(x.Config, x.Args),
		ResponseFormat: responseFormat(x.OutputSchema),
	})
	if err != nil {
		return nil, err
	}
	return finish(x, resp.Content.Text())
}

// finish builds the result from the final answer, decoding it when an output
// schema was requested.
func finish(x *Execution, text string) (*core.Result, error) {
	res := &core.Result{Text: text}
	if len(x.OutputSchema) == 0 {
		return res, nil
	}
	v, err := model.DecodeStructured(text, x.OutputSchema)
	if err != nil {
		return nil, core.NewAgentError("execute", x.Config.Name, err, "")
	}
	res.Structured = v
	return res, nil
}
