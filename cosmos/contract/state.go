package contract

import "fmt"

// Stage is how far along its lifecycle a contract is.
type Stage int

const (
	StageUnstored Stage = iota
	StageStored
	StageInstantiated
)

func (s Stage) String() string {
	switch s {
	case StageUnstored:
		return "unstored"
	case StageStored:
		return "stored"
	case StageInstantiated:
		return "instantiated"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// ContractState is threaded through the Ledger's calls by the caller. The zero value is an unstored contract.
// Values are never mutated in place; each successful transition returns a new one.
type ContractState struct {
	Stage   Stage
	CodeID  uint64
	Address string
	Label   string
}

// StoredContract rebuilds the state of code uploaded in an earlier run.
func StoredContract(codeID uint64) ContractState {
	return ContractState{
		Stage:  StageStored,
		CodeID: codeID,
	}
}

// InstantiatedContract rebuilds the state of a contract instantiated in an earlier run.
func InstantiatedContract(codeID uint64, address, label string) ContractState {
	return ContractState{
		Stage:   StageInstantiated,
		CodeID:  codeID,
		Address: address,
		Label:   label,
	}
}

func (s ContractState) String() string {
	switch s.Stage {
	case StageStored:
		return fmt.Sprintf("stored(code_id=%d)", s.CodeID)
	case StageInstantiated:
		return fmt.Sprintf("instantiated(code_id=%d, address=%s, label=%q)", s.CodeID, s.Address, s.Label)
	}
	return s.Stage.String()
}

func (s ContractState) requireStage(stage Stage) error {
	if s.Stage != stage {
		return ErrInvalidStage.Wrapf("contract is %s, operation needs %s", s.Stage, stage)
	}
	return nil
}
