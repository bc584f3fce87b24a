package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const mongoCollection = "users"

// mongoAccount is the document shape of the users collection.
type mongoAccount struct {
	ID                     string     `bson:"_id"`
	Firstname              string     `bson:"firstname"`
	Lastname               string     `bson:"lastname"`
	Email                  string     `bson:"email"`
	Password               string     `bson:"password"`
	Verified               bool       `bson:"verified"`
	VerificationCode       *string    `bson:"verificationCode,omitempty"`
	Token                  *string    `bson:"token,omitempty"`
	ResetPasswordToken     *string    `bson:"resetPasswordToken,omitempty"`
	ResetPasswordExpiresIn *time.Time `bson:"resetPasswordExpiresIn,omitempty"`
	CreatedAt              time.Time  `bson:"createdAt"`
	UpdatedAt              time.Time  `bson:"updatedAt"`
}

// MongoRepository stores accounts as documents in MongoDB.
type MongoRepository struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// ConnectMongo dials uri and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client, nil
}

func NewMongoRepository(client *mongo.Client, database string) *MongoRepository {
	return &MongoRepository{
		client: client,
		coll:   client.Database(database).Collection(mongoCollection),
	}
}

// EnsureIndexes creates the secondary-field indexes used by the lookups.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}},
		{Keys: bson.D{{Key: "verificationCode", Value: 1}}, Options: options.Index().SetSparse(true)},
		{Keys: bson.D{{Key: "resetPasswordToken", Value: 1}}, Options: options.Index().SetSparse(true)},
	}

	if _, err := r.coll.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoRepository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return r.findOne(ctx, "find account by email", bson.M{"email": email})
}

func (r *MongoRepository) FindByVerificationCode(ctx context.Context, code string) (*Account, error) {
	return r.findOne(ctx, "find account by verification code", bson.M{"verificationCode": code})
}

func (r *MongoRepository) FindByResetToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	return r.findOne(ctx, "find account by reset token", resetTokenDocumentFilter(token, now))
}

func resetTokenDocumentFilter(token string, now time.Time) bson.M {
	return bson.M{
		"resetPasswordToken":     token,
		"resetPasswordExpiresIn": bson.M{"$gt": now},
	}
}

func (r *MongoRepository) findOne(ctx context.Context, op string, filter bson.M) (*Account, error) {
	var doc mongoAccount
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	return mapDocumentToAccount(&doc)
}

func (r *MongoRepository) Insert(ctx context.Context, a *Account) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	if _, err := r.coll.InsertOne(ctx, mapAccountToDocument(a)); err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// Update replaces the whole document, so cleared optional fields disappear.
func (r *MongoRepository) Update(ctx context.Context, a *Account) error {
	updated := a.Clone()
	updated.UpdatedAt = time.Now().UTC()

	result, err := r.coll.ReplaceOne(ctx, bson.M{"_id": a.ID.String()}, mapAccountToDocument(updated))
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	a.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *MongoRepository) DeleteByEmail(ctx context.Context, email string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"email": email})
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func mapDocumentToAccount(doc *mongoAccount) (*Account, error) {
	id, err := uuid.Parse(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse account id %q: %w", doc.ID, err)
	}

	return &Account{
		ID:                     id,
		Firstname:              doc.Firstname,
		Lastname:               doc.Lastname,
		Email:                  doc.Email,
		PasswordHash:           doc.Password,
		Verified:               doc.Verified,
		VerificationCode:       doc.VerificationCode,
		VerificationToken:      doc.Token,
		ResetPasswordToken:     doc.ResetPasswordToken,
		ResetPasswordExpiresIn: doc.ResetPasswordExpiresIn,
		CreatedAt:              doc.CreatedAt,
		UpdatedAt:              doc.UpdatedAt,
	}, nil
}

func mapAccountToDocument(a *Account) *mongoAccount {
	return &mongoAccount{
		ID:                     a.ID.String(),
		Firstname:              a.Firstname,
		Lastname:               a.Lastname,
		Email:                  a.Email,
		Password:               a.PasswordHash,
		Verified:               a.Verified,
		VerificationCode:       a.VerificationCode,
		Token:                  a.VerificationToken,
		ResetPasswordToken:     a.ResetPasswordToken,
		ResetPasswordExpiresIn: a.ResetPasswordExpiresIn,
		CreatedAt:              a.CreatedAt,
		UpdatedAt:              a.UpdatedAt,
	}
}
