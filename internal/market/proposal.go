package market

import (
	"fmt"
	"strings"

	"carbonex.market/cmx/internal/types"
)

// SubmitProposal stores a new unapproved proposal owned by the caller.
func (m *Market) SubmitProposal(ctx Context, description string, target uint64) (*Result, error) {
	if strings.TrimSpace(description) == "" {
		return nil, makeError(ErrInvalidArgument, "proposal description is required")
	}
	if target == 0 {
		return nil, makeError(ErrInvalidArgument, "reduction target must be positive")
	}

	proposal := types.Proposal{
		ID:          newID(ctx, "proposal"),
		Proposer:    ctx.CallerID(),
		Description: description,
		Target:      target,
		SubmittedAt: now(ctx),
	}
	if err := putRecord(ctx, proposalKey(proposal.ID), &proposal); err != nil {
		return nil, err
	}
	if err := emit(ctx, EventProposalSubmitted, &proposal); err != nil {
		return nil, err
	}

	log.Debugf("Proposal %s submitted by %s", proposal.ID, proposal.Proposer)
	return &Result{
		Message: fmt.Sprintf("Proposal submitted with ID: %s", proposal.ID),
		ID:      proposal.ID,
	}, nil
}

// ApproveProject approves a proposal and allocates credits to it.
func (m *Market) ApproveProject(ctx Context, proposalID string, credits uint64) (*Result, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	if credits == 0 {
		return nil, makeError(ErrInvalidArgument, "credit allocation must be positive")
	}

	proposal, err := loadProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Approved {
		return nil, errorf(ErrAlreadyApproved, "proposal %s is already approved", proposalID)
	}

	proposal.Approved = true
	proposal.AllocatedCredits = credits
	if err := putRecord(ctx, proposalKey(proposalID), proposal); err != nil {
		return nil, err
	}
	if err := emit(ctx, EventProjectApproved, proposal); err != nil {
		return nil, err
	}

	log.Debugf("Proposal %s approved for %d credits", proposalID, credits)
	return &Result{
		Message: fmt.Sprintf("Proposal %s approved with %d credits", proposalID, credits),
		ID:      proposalID,
	}, nil
}

// IssueCarbonCredits credits the allocation of an approved proposal to its
// proposer. Each proposal is issued at most once.
func (m *Market) IssueCarbonCredits(ctx Context, proposalID string) (*Result, error) {
	proposal, err := loadProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if !proposal.Approved {
		return nil, errorf(ErrNotApproved, "proposal %s is not approved", proposalID)
	}
	if proposal.Issued {
		return nil, errorf(ErrAlreadyIssued, "credits for proposal %s were already issued", proposalID)
	}

	acct, err := creditAccount(ctx, proposal.Proposer, proposal.AllocatedCredits)
	if err != nil {
		return nil, err
	}
	proposal.Issued = true
	if err := putRecord(ctx, proposalKey(proposalID), proposal); err != nil {
		return nil, err
	}
	if err := emit(ctx, EventCreditsIssued, proposal); err != nil {
		return nil, err
	}

	log.Infof("Issued %d credits to %s for proposal %s (balance %d)",
		proposal.AllocatedCredits, proposal.Proposer, proposalID, acct.Balance)
	return &Result{
		Message: fmt.Sprintf("Issued %d carbon credits to %s", proposal.AllocatedCredits, proposal.Proposer),
		ID:      proposalID,
	}, nil
}

// GetProposal returns a proposal.
func (m *Market) GetProposal(ctx Context, proposalID string) (*Result, error) {
	proposal, err := loadProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	return queryResult(proposal)
}

func loadProposal(ctx Context, proposalID string) (*types.Proposal, error) {
	if proposalID == "" {
		return nil, makeError(ErrInvalidArgument, "proposal id is required")
	}
	var proposal types.Proposal
	found, err := getRecord(ctx, proposalKey(proposalID), &proposal)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errorf(ErrNotFound, "proposal %s does not exist", proposalID)
	}
	return &proposal, nil
}
