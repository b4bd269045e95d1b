package inventory

import (
	"context"
	"strings"

	"github.com/jhoicas/stockflow/internal/application/dto"
	"github.com/jhoicas/stockflow/internal/domain/entity"
)

// RecordMovementFromRequest adapta el request HTTP al caso de uso RecordMovement.
func (l *Ledger) RecordMovementFromRequest(ctx context.Context, actor *entity.Actor, in dto.RegisterMovementRequest) (*entity.Movement, error) {
	input := MovementInput{
		RequestID:           strings.TrimSpace(in.RequestID),
		ProductID:           strings.TrimSpace(in.ProductID),
		OriginBranchID:      strings.TrimSpace(in.OriginBranchID),
		DestinationBranchID: strings.TrimSpace(in.DestinationBranchID),
		Quantity:            in.Quantity,
		Type:                entity.MovementType(strings.ToLower(strings.TrimSpace(in.Type))),
		Notes:               strings.TrimSpace(in.Notes),
		InvoiceNumber:       strings.TrimSpace(in.InvoiceNumber),
	}
	return l.RecordMovement(ctx, actor, input)
}

// ToMovementResponse arma la respuesta de un movimiento.
func ToMovementResponse(m *entity.Movement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:                  m.ID,
		RequestID:           m.RequestID,
		ProductID:           m.ProductID,
		ProductCode:         m.ProductCode,
		ProductName:         m.ProductName,
		ProductDepartment:   string(m.ProductDepartment),
		OriginBranchID:      m.OriginBranchID,
		DestinationBranchID: m.DestinationBranchID,
		Quantity:            m.Quantity,
		Type:                string(m.Type),
		Transfer:            m.IsTransfer(),
		Notes:               m.Notes,
		InvoiceNumber:       m.InvoiceNumber,
		CreatedBy:           m.CreatedBy,
		CreatedAt:           m.CreatedAt,
	}
}
