package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/elicensing/api"
	"github.com/cleanbc/obps/internal/elicensing/clientsync/domain"
	registrydomain "github.com/cleanbc/obps/internal/registry/domain"
	"github.com/cleanbc/obps/pkg/db"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	API      api.Client
	Registry registrydomain.Repository
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	api      api.Client
	registry registrydomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("clientsync.service"),
		genID:    p.GenID,
		api:      p.API,
		registry: p.Registry,
	}
}

func (s *Service) SyncClientWithElicensing(ctx context.Context, operatorID snowflake.ID) (domain.ElicensingClientOperator, error) {
	if existing, err := s.findMapping(ctx, operatorID); err != nil {
		return domain.ElicensingClientOperator{}, err
	} else if existing != nil && existing.ClientObjectID != "" {
		return *existing, nil
	}

	operator, err := s.registry.FindOperatorByID(ctx, s.db, operatorID)
	if err != nil {
		return domain.ElicensingClientOperator{}, err
	}

	clientGUID := uuid.NewString()
	created, err := s.api.CreateClient(ctx, buildClientPayload(*operator, clientGUID))
	if err != nil {
		return domain.ElicensingClientOperator{}, err
	}

	mapping := domain.ElicensingClientOperator{
		ID:             s.genID.Generate(),
		OperatorID:     operatorID,
		ClientObjectID: created.ClientObjectID,
		ClientGUID:     clientGUID,
	}
	if err := s.db.WithContext(ctx).Create(&mapping).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Another writer committed first; its external client wins and
			// our network result is discarded.
			winner, findErr := s.findMapping(ctx, operatorID)
			if findErr != nil {
				return domain.ElicensingClientOperator{}, findErr
			}
			s.log.Warn("concurrent client sync lost race, reusing winner",
				zap.String("operator_id", operatorID.String()),
				zap.String("discarded_client_object_id", created.ClientObjectID),
			)
			return *winner, nil
		}
		return domain.ElicensingClientOperator{}, err
	}

	s.log.Info("elicensing client created",
		zap.String("operator_id", operatorID.String()),
		zap.String("client_object_id", created.ClientObjectID),
	)
	return mapping, nil
}

func (s *Service) findMapping(ctx context.Context, operatorID snowflake.ID) (*domain.ElicensingClientOperator, error) {
	var mapping domain.ElicensingClientOperator
	err := s.db.WithContext(ctx).Raw(
		`SELECT * FROM elicensing_client_operators WHERE operator_id = ?`, operatorID,
	).Scan(&mapping).Error
	if err != nil {
		return nil, err
	}
	if mapping.ID == 0 {
		return nil, nil
	}
	return &mapping, nil
}

// buildClientPayload assembles a create-client request. The address falls
// back physical -> mailing -> a placeholder that still satisfies the
// external API's required-field contract.
func buildClientPayload(operator registrydomain.Operator, clientGUID string) api.CreateClientRequest {
	address := operator.PhysicalAddress()
	if address.IsZero() {
		address = operator.MailingAddress()
	}
	if address.IsZero() {
		address = registrydomain.Address{
			Street:     "Unknown",
			City:       "Unknown",
			Province:   "BC",
			PostalCode: "V0V0V0",
		}
	}

	return api.CreateClientRequest{
		ClientGUID:                  clientGUID,
		BusinessAreaCode:            api.BusinessAreaCode,
		CompanyName:                 operator.LegalName,
		DoingBusinessAs:             operator.TradeName,
		BCCompanyRegistrationNumber: operator.RegistryNumber,
		AddressLine:                 address.Street,
		City:                        address.City,
		Province:                    address.Province,
		PostalCode:                  address.PostalCode,
		Country:                     "Canada",
	}
}
