package database

import (
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/bestpractice116/liminal-umbrella/internal/database/models"
	"github.com/bestpractice116/liminal-umbrella/internal/engine"
)

// Repository provides access to all database models.
type Repository struct {
	member    *models.MemberModel
	role      *models.RoleModel
	channel   *models.ChannelModel
	thread    *models.ThreadModel
	message   *models.MessageModel
	watermark *models.WatermarkModel
	interest  *models.InterestModel
	greeting  *models.GreetingModel
	signup    *models.SignupModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		member:    models.NewMember(db, logger),
		role:      models.NewRole(db, logger),
		channel:   models.NewChannel(db, logger),
		thread:    models.NewThread(db, logger),
		message:   models.NewMessage(db, logger),
		watermark: models.NewWatermark(db, logger),
		interest:  models.NewInterest(db, logger),
		greeting:  models.NewGreeting(db, logger),
		signup:    models.NewSignup(db, logger),
	}
}

// Member returns the member model repository.
func (r *Repository) Member() *models.MemberModel {
	return r.member
}

// Role returns the role model repository.
func (r *Repository) Role() *models.RoleModel {
	return r.role
}

// Channel returns the channel model repository.
func (r *Repository) Channel() *models.ChannelModel {
	return r.channel
}

// Thread returns the thread model repository.
func (r *Repository) Thread() *models.ThreadModel {
	return r.thread
}

// Message returns the message model repository.
func (r *Repository) Message() *models.MessageModel {
	return r.message
}

// Watermark returns the watermark model repository.
func (r *Repository) Watermark() *models.WatermarkModel {
	return r.watermark
}

// Interest returns the interest model repository.
func (r *Repository) Interest() *models.InterestModel {
	return r.interest
}

// Greeting returns the greeting model repository.
func (r *Repository) Greeting() *models.GreetingModel {
	return r.greeting
}

// Signup returns the signup model repository.
func (r *Repository) Signup() *models.SignupModel {
	return r.signup
}

// EngineStore bundles the repository's models into the store surface the
// sync engine writes through.
func (r *Repository) EngineStore() engine.Store {
	return engine.Store{
		Members:    r.member,
		Roles:      r.role,
		Channels:   r.channel,
		Threads:    r.thread,
		Messages:   r.message,
		Watermarks: r.watermark,
		Interests:  r.interest,
		Greetings:  r.greeting,
		Signups:    r.signup,
	}
}
