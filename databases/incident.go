package databases

// go generate: mockery --name IncidentDatabase

import (
	"context"

	"github.com/totemops/totem-api/models"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const incidentName = "incidents"

// IncidentDatabase contains the methods to use with the incident database
type IncidentDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.Incident, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.Incident, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*models.Incident, error)
	DeleteOne(context.Context, interface{}, ...*options.DeleteOptions) error
}

type incidentDatabase struct {
	db DatabaseHelper
}

// NewIncidentDatabase initializes a new instance of incident database with the provided db connection
func NewIncidentDatabase(db DatabaseHelper) IncidentDatabase {
	return &incidentDatabase{
		db: db,
	}
}

func (c *incidentDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.Incident, error) {
	incident := &models.Incident{}
	err := c.db.Collection(incidentName).FindOne(ctx, filter, opts...).Decode(&incident)
	if err != nil {
		return nil, err
	}
	return incident, nil
}

func (c *incidentDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Incident, error) {
	var incidents []models.Incident
	cr, err := c.db.Collection(incidentName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&incidents)
	if err != nil {
		return nil, err
	}
	return incidents, nil
}

func (c *incidentDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := c.db.Collection(incidentName).InsertOne(ctx, document, opts...)
	return res, err
}

// UpdateOne applies the update and returns the resulting document. The update
// itself is a single document write, so field changes and any pushed
// activityLog entries land atomically.
func (c *incidentDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*models.Incident, error) {
	_, err := c.db.Collection(incidentName).UpdateOne(ctx, filter, update, opts...)
	if err != nil {
		return nil, err
	}
	incident := &models.Incident{}
	err = c.db.Collection(incidentName).FindOne(ctx, filter).Decode(&incident)
	if err != nil {
		return nil, err
	}
	return incident, nil
}

func (c *incidentDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return c.db.Collection(incidentName).DeleteOne(ctx, filter, opts...)
}
