package allocation

import (
	"fmt"

	"resourcehive/internal/repository"
	"resourcehive/pkg/apperrors"

	"github.com/doug-martin/goqu/v9"
)

// RequesterContact is the slice of the user row notifications need.
type RequesterContact struct {
	ID       int    `db:"id"`
	Fullname string `db:"fullname"`
	Email    string `db:"email"`
	Phone    string `db:"phone"`
}

// RequesterRepository resolves batch owners to their contact details.
type RequesterRepository struct {
	r *repository.Repository
}

func NewRequesterRepository(r *repository.Repository) *RequesterRepository {
	return &RequesterRepository{r: r}
}

func (rr *RequesterRepository) GetRequester(userID int) (*RequesterContact, error) {
	var contact RequesterContact
	found, err := rr.r.GoquDBWrapper.
		Select("id", "fullname", "email", "phone").
		From("users").
		Where(goqu.Ex{"id": userID}).
		Executor().ScanStruct(&contact)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch requester: %w", err)
	}
	if !found {
		return nil, apperrors.Newf(apperrors.KindNotFound, "User %d not found", userID)
	}

	return &contact, nil
}
