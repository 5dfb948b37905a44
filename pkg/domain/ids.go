// Package domain holds the typed identifiers shared across bounded contexts.
//
// IDs are parsed once at the trust boundary (path parameter, token claim)
// and passed around typed, so a vehicle ID can never be handed to a
// function expecting a user ID.
package domain

import (
	"github.com/google/uuid"

	dErrors "emissions/pkg/domain-errors"
)

type (
	UserID    uuid.UUID
	VehicleID uuid.UUID
	ResultID  uuid.UUID
)

func NewVehicleID() VehicleID { return VehicleID(uuid.New()) }
func NewResultID() ResultID   { return ResultID(uuid.New()) }
func NewUserID() UserID       { return UserID(uuid.New()) }

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

func ParseVehicleID(s string) (VehicleID, error) {
	u, err := parseUUID(s, "vehicle ID")
	return VehicleID(u), err
}

func ParseResultID(s string) (ResultID, error) {
	u, err := parseUUID(s, "result ID")
	return ResultID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return u, nil
}

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id VehicleID) String() string { return uuid.UUID(id).String() }
func (id ResultID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id VehicleID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ResultID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)    { return []byte(id.String()), nil }
func (id VehicleID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ResultID) MarshalText() ([]byte, error)  { return []byte(id.String()), nil }

func (id *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = UserID(u)
	return err
}

func (id *VehicleID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = VehicleID(u)
	return err
}

func (id *ResultID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	*id = ResultID(u)
	return err
}
