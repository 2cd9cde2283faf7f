package devnet

import (
	"context"
	"encoding/json"
	"fmt"
)

// EchoActions answers every Lit Action with its own JSON encoded parameters and
// signs nothing. A custom auth action run with the parameter `true` therefore
// authorizes the session.
var EchoActions = ActionRunnerFunc(func(_ context.Context, req ActionRequest) (*ActionResult, error) {
	response, err := json.Marshal(req.JsParams)
	if err != nil {
		return nil, fmt.Errorf("could not encode js params: %w", err)
	}
	return &ActionResult{
		Response: string(response),
		Logs:     fmt.Sprintf("echo: %d bytes of code, ipfs id %q\n", len(req.Code), req.IpfsID),
	}, nil
})
