package databases

// go generate: mockery --name MobileUnitDatabase

import (
	"context"

	"github.com/totemops/totem-api/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mobileUnitName = "mobileUnits"

// MobileUnitDatabase contains the methods to use with the mobile unit database
type MobileUnitDatabase interface {
	FindOne(context.Context, interface{}, ...*options.FindOneOptions) (*models.MobileUnit, error)
	Find(context.Context, interface{}, ...*options.FindOptions) ([]models.MobileUnit, error)
	InsertOne(context.Context, interface{}, ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(context.Context, interface{}, interface{}, ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(context.Context, interface{}, ...*options.DeleteOptions) error
	CountDocuments(context.Context, interface{}, ...*options.CountOptions) (int64, error)
}

type mobileUnitDatabase struct {
	db DatabaseHelper
}

// NewMobileUnitDatabase initializes a new instance of mobile unit database with the provided db connection
func NewMobileUnitDatabase(db DatabaseHelper) MobileUnitDatabase {
	return &mobileUnitDatabase{
		db: db,
	}
}

func (m *mobileUnitDatabase) FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) (*models.MobileUnit, error) {
	unit := &models.MobileUnit{}
	err := m.db.Collection(mobileUnitName).FindOne(ctx, filter, opts...).Decode(&unit)
	if err != nil {
		return nil, err
	}
	return unit, nil
}

func (m *mobileUnitDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.MobileUnit, error) {
	var units []models.MobileUnit
	cr, err := m.db.Collection(mobileUnitName).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	err = cr.Decode(&units)
	if err != nil {
		return nil, err
	}
	return units, nil
}

func (m *mobileUnitDatabase) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	res, err := m.db.Collection(mobileUnitName).InsertOne(ctx, document, opts...)
	return res, err
}

func (m *mobileUnitDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return m.db.Collection(mobileUnitName).UpdateOne(ctx, filter, update, opts...)
}

func (m *mobileUnitDatabase) DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) error {
	return m.db.Collection(mobileUnitName).DeleteOne(ctx, filter, opts...)
}

func (m *mobileUnitDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return m.db.Collection(mobileUnitName).CountDocuments(ctx, filter, opts...)
}
