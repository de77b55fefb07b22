package service

import (
	"context"

	"github.com/raphaelgruber/reqjourney-go/internal/extraction"
	"github.com/raphaelgruber/reqjourney-go/internal/models"
)

// Extract runs one stage to completion outside any analysis context and
// applies the same result checks as RunStage. onProgress may be nil.
// Failures are returned as *ServiceError.
func Extract(ctx context.Context, client extraction.Client, req extraction.Request, onProgress func(int)) (models.Result, error) {
	events, err := client.Submit(ctx, req)
	if err != nil {
		return nil, submitError(err)
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return nil, &ServiceError{Message: "extraction stream ended without a result", Kind: ServiceKindStream}
			}
			switch {
			case ev.Err != nil:
				return nil, submitError(ev.Err)
			case ev.Result != nil:
				if err := checkResult(req, ev.Result); err != nil {
					return nil, NewServiceError(ServiceKindInvalidResult, err)
				}
				return ev.Result, nil
			case onProgress != nil:
				onProgress(ev.Progress)
			}
		case <-ctx.Done():
			return nil, &ServiceError{Message: "extraction timed out", Kind: ServiceKindTimeout, Err: ctx.Err()}
		}
	}
}
