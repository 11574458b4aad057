package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	repository "github.com/joshuakessell/club-ops-deploy-sub008/internal/database/postgres"
	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
	"github.com/joshuakessell/club-ops-deploy-sub008/pkg/kafka"
)

type UpdateCustomerRequest struct {
	Name         *string `json:"name,omitempty" binding:"omitempty,min=1,max=255"`
	Email        *string `json:"email,omitempty" binding:"omitempty,email"`
	BalanceCents *int64  `json:"balance_cents,omitempty"`
	Banned       *bool   `json:"banned,omitempty"`
	Note         *string `json:"note,omitempty" binding:"omitempty,max=2000"`
}

type customerService struct {
	customerRepo repository.CustomerRepository
	audit        kafka.Producer
}

func NewCustomerService(customerRepo repository.CustomerRepository, audit kafka.Producer) CustomerService {
	return &customerService{
		customerRepo: customerRepo,
		audit:        audit,
	}
}

func (s *customerService) Get(ctx context.Context, id int64) (*entity.Customer, error) {
	return s.customerRepo.GetByID(ctx, id)
}

// Update is only reachable through the step-up gate; every call lands in
// the audit trail with the acting staff identity.
func (s *customerService) Update(ctx context.Context, id int64, req *UpdateCustomerRequest, actor string) (*entity.Customer, error) {
	customer, err := s.customerRepo.Update(ctx, id, repository.CustomerPatch{
		Name:         req.Name,
		Email:        req.Email,
		BalanceCents: req.BalanceCents,
		Banned:       req.Banned,
		Note:         req.Note,
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"customer": id,
		"actor":    actor,
	}).Info("Customer updated by admin")

	if s.audit != nil {
		err := s.audit.Record(ctx, kafka.AuditRecord{
			Actor:   actor,
			Action:  "admin.customer_update",
			Target:  fmt.Sprintf("customer=%d", id),
			Outcome: "success",
			At:      time.Now().UTC(),
		})
		if err != nil {
			logrus.Errorf("Failed to record audit entry: %v", err)
		}
	}

	return customer, nil
}
