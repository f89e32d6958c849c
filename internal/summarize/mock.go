package summarize

import (
	"context"
	"fmt"
	"time"
)

// MockAnalysis is returned in development mode.
const MockAnalysis = "This is a mock analysis for development purposes because the 'story' API key was used. " +
	"This mode allows testing the application flow without making real calls to the OpenAI API.\n\n" +
	"Current Drought Conditions: Mock assessment of severe drought.\n" +
	"Food Security and Production: Mock effects on crops and livestock.\n" +
	"Water Resources: Mock status of low reservoir and river levels.\n" +
	"Food Prices: Mock summary of staple price movements."

// Mock returns MockAnalysis after Delay without calling any model.
type Mock struct {
	Delay time.Duration
}

// Summarize waits out the simulated processing time.
func (m Mock) Summarize(ctx context.Context, _ Request) (string, error) {
	if m.Delay > 0 {
		timer := time.NewTimer(m.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("mock summarize: %w", ctx.Err())
		case <-timer.C:
		}
	}
	return MockAnalysis, nil
}
