package market

import (
	"fmt"
	"strings"

	"carbonex.market/cmx/internal/types"
)

// Initialize writes the government profile with the caller as administrator.
// A profile may be rewritten later, but only by its current administrator.
func (m *Market) Initialize(ctx Context, governmentName, country, deptName string) (*Result, error) {
	if strings.TrimSpace(governmentName) == "" {
		return nil, makeError(ErrInvalidArgument, "government name is required")
	}

	caller := ctx.CallerID()
	var current types.GovernmentProfile
	found, err := getRecord(ctx, governmentKey, &current)
	if err != nil {
		return nil, err
	}
	switch {
	case found && current.Admin != caller:
		return nil, makeError(ErrUnauthorized, "only the current administrator may re-initialize the government profile")
	case !found && m.cfg.GovernmentID != "" && m.cfg.GovernmentID != caller:
		return nil, makeError(ErrUnauthorized, "caller is not the configured government identity")
	}

	profile := types.GovernmentProfile{
		Admin:      caller,
		Name:       governmentName,
		Country:    country,
		Department: deptName,
	}
	if err := putRecord(ctx, governmentKey, &profile); err != nil {
		return nil, err
	}
	if err := emit(ctx, EventGovernmentInitialized, &profile); err != nil {
		return nil, err
	}

	log.Infof("Government profile %q initialized by %s", governmentName, caller)
	return &Result{Message: fmt.Sprintf("Government %s of %s initialized", governmentName, country)}, nil
}

// GetGovernment returns the government profile.
func (m *Market) GetGovernment(ctx Context) (*Result, error) {
	var profile types.GovernmentProfile
	found, err := getRecord(ctx, governmentKey, &profile)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, makeError(ErrNotInitialized, "government profile has not been initialized")
	}
	return queryResult(&profile)
}

// requireAdmin fails unless the caller is the government administrator.
func requireAdmin(ctx Context) error {
	var profile types.GovernmentProfile
	found, err := getRecord(ctx, governmentKey, &profile)
	if err != nil {
		return err
	}
	if !found {
		return makeError(ErrNotInitialized, "government profile has not been initialized")
	}
	if profile.Admin != ctx.CallerID() {
		return makeError(ErrUnauthorized, "operation is restricted to the government administrator")
	}
	return nil
}
