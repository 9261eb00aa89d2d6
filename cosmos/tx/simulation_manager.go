package tx

import (
	"context"
	"math"
)

// Simulator runs a transaction against current state without committing it, returning gas used.
type Simulator interface {
	Simulate(ctx context.Context, txBytes []byte) (gasUsed uint64, err error)
}

// SimulationManager manages simulating gas from transactions.
type SimulationManager interface {
	SimulateTxBytes(ctx context.Context, txBytes []byte, gasFactor float64) (*SimulationResult, error)
}

// simulationManager is the default implementation
type simulationManager struct {
	simulator Simulator
}

// Ensure type conformance
var _ SimulationManager = (*simulationManager)(nil)

// NewSimulationManager makes a new default simulationManager
func NewSimulationManager(simulator Simulator) (SimulationManager, error) {
	return &simulationManager{
		simulator: simulator,
	}, nil
}

// Simulation Manager interface

func (sm *simulationManager) SimulateTxBytes(ctx context.Context, txBytes []byte, gasFactor float64) (*SimulationResult, error) {
	gasUsed, err := sm.simulator.Simulate(ctx, txBytes)
	if err != nil {
		return nil, err
	}

	return &SimulationResult{
		GasUsed:           gasUsed,
		GasRecommendation: AdjustGas(gasUsed, gasFactor),
	}, nil
}

// AdjustGas scales simulated gas by the adjustment factor, rounding up.
func AdjustGas(gasUsed uint64, gasFactor float64) uint64 {
	return uint64(math.Ceil(float64(gasUsed) * gasFactor))
}
