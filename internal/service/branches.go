package service

import (
	"context"
	"fmt"
	"strings"

	"washouse/backend/internal/domain"
	"washouse/backend/internal/store"
	"washouse/backend/internal/xid"
)

// slugify derives the immutable branch id from its name: lowercase,
// spaces collapsed to underscores, everything else non-alphanumeric
// dropped.
func slugify(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ' || r == '_' || r == '-':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

func (s *Service) CreateBranch(ctx context.Context, req domain.BranchCreateRequest) (domain.Branch, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Branch{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Branch{}, fmt.Errorf("branch name required: %w", store.ErrInvalidOperation)
	}
	if req.WaterCostPerCycleCents < 0 || req.ElectricityCostPerCycleCents < 0 || req.GasCostPerCycleCents < 0 {
		return domain.Branch{}, fmt.Errorf("utility costs must be non-negative: %w", store.ErrInvalidOperation)
	}

	id := slugify(req.Name)
	if id == "" {
		return domain.Branch{}, fmt.Errorf("branch name yields empty id: %w", store.ErrInvalidOperation)
	}

	branch := domain.Branch{
		ID:                           id,
		Name:                         req.Name,
		Address:                      strings.TrimSpace(req.Address),
		WaterCostPerCycleCents:       req.WaterCostPerCycleCents,
		ElectricityCostPerCycleCents: req.ElectricityCostPerCycleCents,
		GasCostPerCycleCents:         req.GasCostPerCycleCents,
	}

	created, err := s.repo.CreateBranch(ctx, branch)
	if err != nil {
		return domain.Branch{}, err
	}

	// New branches start with the default machine set and the standard
	// supplies catalog, same as the main branch.
	for _, m := range domain.DefaultMachines() {
		m.ID = xid.New("MACH")
		m.BranchID = created.ID
		if _, err := s.repo.CreateMachine(ctx, m); err != nil {
			return domain.Branch{}, err
		}
	}
	for _, item := range domain.StandardCatalog() {
		item.ID = xid.New("ITEM")
		item.BranchID = created.ID
		if _, err := s.repo.CreateInventoryItem(ctx, item); err != nil {
			return domain.Branch{}, err
		}
	}

	s.logActivity(ctx, created.ID, "BRANCH_CREATED", fmt.Sprintf("Sucursal %s (%s)", created.Name, created.ID))
	return *created, nil
}

func (s *Service) GetBranch(ctx context.Context, branchID string) (domain.Branch, error) {
	branch, err := s.repo.GetBranch(ctx, branchID)
	if err != nil {
		return domain.Branch{}, err
	}
	return *branch, nil
}

func (s *Service) ListBranches(ctx context.Context) ([]domain.Branch, error) {
	return s.repo.ListBranches(ctx)
}

func (s *Service) UpdateBranch(ctx context.Context, branchID string, req domain.BranchUpdateRequest) (domain.Branch, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Branch{}, err
	}

	existing, err := s.repo.GetBranch(ctx, branchID)
	if err != nil {
		return domain.Branch{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Branch{}, fmt.Errorf("branch name required: %w", store.ErrInvalidOperation)
		}
		// The id stays the original slug even when the name changes.
		updated.Name = name
	}
	if req.Address != nil {
		updated.Address = strings.TrimSpace(*req.Address)
	}
	if req.WaterCostPerCycleCents != nil {
		updated.WaterCostPerCycleCents = *req.WaterCostPerCycleCents
	}
	if req.ElectricityCostPerCycleCents != nil {
		updated.ElectricityCostPerCycleCents = *req.ElectricityCostPerCycleCents
	}
	if req.GasCostPerCycleCents != nil {
		updated.GasCostPerCycleCents = *req.GasCostPerCycleCents
	}

	saved, err := s.repo.UpdateBranch(ctx, updated)
	if err != nil {
		return domain.Branch{}, err
	}

	s.logActivity(ctx, saved.ID, "BRANCH_UPDATED", fmt.Sprintf("Sucursal %s", saved.ID))
	return *saved, nil
}

func (s *Service) DeleteBranch(ctx context.Context, branchID string) error {
	if err := requireAdmin(ctx); err != nil {
		return err
	}
	if branchID == s.defaultBranchID {
		return fmt.Errorf("default branch cannot be deleted: %w", store.ErrInvalidOperation)
	}

	branch, err := s.repo.GetBranch(ctx, branchID)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteBranchCascade(ctx, branchID); err != nil {
		return err
	}

	s.directory.Invalidate(ctx)
	s.logActivity(ctx, s.defaultBranchID, "BRANCH_DELETED", fmt.Sprintf("Sucursal %s (%s)", branch.Name, branchID))
	return nil
}

func (s *Service) ListMachines(ctx context.Context, branchID string) ([]domain.Machine, error) {
	return s.repo.ListMachines(ctx, branchID)
}

// SetMachineStatus flips a machine through its available/running/finished
// cycle. There is no timer: the host marks cycles finished by hand.
func (s *Service) SetMachineStatus(ctx context.Context, machineID string, status string) (domain.Machine, error) {
	switch status {
	case domain.MachineStatusAvailable, domain.MachineStatusRunning, domain.MachineStatusFinished:
	default:
		return domain.Machine{}, fmt.Errorf("unknown machine status %q: %w", status, store.ErrInvalidOperation)
	}

	machine, err := s.repo.UpdateMachineStatus(ctx, machineID, status)
	if err != nil {
		return domain.Machine{}, err
	}

	s.logActivity(ctx, machine.BranchID, "MACHINE_STATUS", fmt.Sprintf("%s a %s", machine.Name, status))
	return *machine, nil
}
