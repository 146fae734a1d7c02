// Package dynamostore implements gateway.Gateway on DynamoDB and S3 for
// hosted deployments. Items and accounts share a single table; assets go to
// an S3 bucket and are served through presigned URLs.
package dynamostore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/model"
)

// Options configures a Store.
type Options struct {
	Table  string
	Bucket string
	// AssetTTL bounds presigned asset URLs. Defaults to 15 minutes.
	AssetTTL time.Duration
	// PollInterval paces the change-stream poller. Defaults to 3 seconds.
	PollInterval time.Duration
}

// Store implements gateway.Gateway on a DynamoDB table and an S3 bucket.
type Store struct {
	db       *dynamodb.Client
	s3c      *s3.Client
	presign  *s3.PresignClient
	table    string
	bucket   string
	assetTTL time.Duration
	pollEach time.Duration

	// now is swappable in tests.
	now func() time.Time
}

// New wires a store from already-constructed AWS clients.
func New(db *dynamodb.Client, s3c *s3.Client, opts Options) *Store {
	if opts.AssetTTL <= 0 {
		opts.AssetTTL = 15 * time.Minute
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	return &Store{
		db:       db,
		s3c:      s3c,
		presign:  s3.NewPresignClient(s3c),
		table:    opts.Table,
		bucket:   opts.Bucket,
		assetTTL: opts.AssetTTL,
		pollEach: opts.PollInterval,
		now:      time.Now,
	}
}

func persistErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(gateway.ErrPersistenceFailed, err))
}

func (s *Store) CreateItem(ctx context.Context, payload gateway.ItemPayload) (string, error) {
	item := model.Item{
		ID:          ulid.Make().String(),
		Kind:        payload.Kind,
		Category:    payload.Category,
		Title:       payload.Title,
		Description: payload.Description,
		Location:    payload.Location,
		OccurredAt:  payload.OccurredAt,
		CreatedAt:   s.now().UTC(),
		Status:      model.StatusUnclaimed,
		ReportedBy:  payload.ReportedBy,
		ImageRef:    payload.ImageRef,
	}
	av, err := attributevalue.MarshalMap(newItemRecord(item))
	if err != nil {
		return "", persistErr("marshaling item", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.table,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return "", persistErr("storing item", err)
	}
	return item.ID, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*model.Item, error) {
	rec, err := s.itemRecordByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item := rec.item()
	if err := item.Check(); err != nil {
		return nil, fmt.Errorf("reading item: %w", err)
	}
	return &item, nil
}

// itemRecordByID resolves an item through the id GSI. Update and delete need
// the raw record to rebuild the table key.
func (s *Store) itemRecordByID(ctx context.Context, id string) (*itemRecord, error) {
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              &s.table,
		IndexName:              aws.String(idIndex),
		KeyConditionExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, persistErr("getting item", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("item %s: %w", id, gateway.ErrNotFound)
	}
	var rec itemRecord
	if err := attributevalue.UnmarshalMap(out.Items[0], &rec); err != nil {
		return nil, persistErr("unmarshaling item", err)
	}
	return &rec, nil
}

// ListPage queries the item partition in key order, resuming after the
// cursor's sort key. Filters are applied server-side, so the loop keeps
// fetching until the page fills or the partition runs out.
func (s *Store) ListPage(ctx context.Context, q gateway.ItemQuery) (gateway.Page, error) {
	anchor, err := gateway.DecodeCursor(q.After)
	if err != nil {
		return gateway.Page{}, err
	}

	size := q.PageSize
	if size <= 0 {
		size = 12
	}

	input := &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: itemPartition},
		},
		ScanIndexForward: aws.Bool(q.Sort == gateway.SortOldest),
	}

	var filters []string
	names := map[string]string{}
	for attr, v := range map[string]string{"kind": q.Kind, "category": q.Category, "item_status": q.Status} {
		if v == "" || v == "all" {
			continue
		}
		alias := "#" + strings.TrimPrefix(attr, "item_")
		filters = append(filters, fmt.Sprintf("%s = :%s", alias, attr))
		names[alias] = attr
		input.ExpressionAttributeValues[":"+attr] = &types.AttributeValueMemberS{Value: v}
	}
	if len(filters) > 0 {
		input.FilterExpression = aws.String(strings.Join(filters, " AND "))
		input.ExpressionAttributeNames = names
	}
	if anchor != nil {
		input.ExclusiveStartKey = map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: itemPartition},
			"SK": &types.AttributeValueMemberS{Value: anchorSK(anchor)},
		}
	}

	var items []model.Item
	for len(items) < size {
		out, err := s.db.Query(ctx, input)
		if err != nil {
			return gateway.Page{}, persistErr("listing items", err)
		}
		for _, av := range out.Items {
			var rec itemRecord
			if err := attributevalue.UnmarshalMap(av, &rec); err != nil {
				return gateway.Page{}, persistErr("unmarshaling item", err)
			}
			item := rec.item()
			if err := item.Check(); err != nil {
				return gateway.Page{}, fmt.Errorf("reading item: %w", err)
			}
			items = append(items, item)
			if len(items) == size {
				break
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	page := gateway.Page{Items: items, HasMore: len(items) == size}
	if len(items) > 0 {
		page.Next = gateway.EncodeCursor(items[len(items)-1])
	}
	return page, nil
}

func (s *Store) UpdateItem(ctx context.Context, id string, patch gateway.ItemPatch, pre *gateway.Precondition) error {
	rec, err := s.itemRecordByID(ctx, id)
	if err != nil {
		return err
	}

	var sets, removes []string
	names := map[string]string{"#s": "item_status"}
	values := map[string]types.AttributeValue{}
	if patch.Status != nil {
		sets = append(sets, "#s = :status")
		values[":status"] = &types.AttributeValueMemberS{Value: *patch.Status}
	}
	if patch.ClaimedBy != nil {
		if *patch.ClaimedBy == "" {
			removes = append(removes, "claimed_by")
		} else {
			sets = append(sets, "claimed_by = :claimant")
			values[":claimant"] = &types.AttributeValueMemberS{Value: *patch.ClaimedBy}
		}
	}
	if len(sets) == 0 && len(removes) == 0 {
		return nil
	}

	var expr []string
	if len(sets) > 0 {
		expr = append(expr, "SET "+strings.Join(sets, ", "))
	}
	if len(removes) > 0 {
		expr = append(expr, "REMOVE "+strings.Join(removes, ", "))
	}

	cond := "attribute_exists(PK)"
	if pre != nil {
		cond += " AND #s = :want"
		values[":want"] = &types.AttributeValueMemberS{Value: pre.Status}
	}

	_, err = s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: &s.table,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: rec.PK},
			"SK": &types.AttributeValueMemberS{Value: rec.SK},
		},
		UpdateExpression:          aws.String(strings.Join(expr, " ")),
		ConditionExpression:       aws.String(cond),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if pre != nil {
			return fmt.Errorf("item %s is no longer %s: %w", id, pre.Status, gateway.ErrPreconditionFailed)
		}
		return fmt.Errorf("item %s: %w", id, gateway.ErrNotFound)
	}
	if err != nil {
		return persistErr("updating item", err)
	}
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	rec, err := s.itemRecordByID(ctx, id)
	if err != nil {
		return err
	}
	_, err = s.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.table,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: rec.PK},
			"SK": &types.AttributeValueMemberS{Value: rec.SK},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("item %s: %w", id, gateway.ErrNotFound)
	}
	if err != nil {
		return persistErr("deleting item", err)
	}
	return nil
}

func (s *Store) UploadAsset(ctx context.Context, data []byte, suggestedName, mime string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty asset: %w", gateway.ErrUploadFailed)
	}
	key := "items/" + suggestedName
	_, err := s.s3c.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &mime,
	})
	if err != nil {
		return "", fmt.Errorf("uploading asset: %w", errors.Join(gateway.ErrUploadFailed, err))
	}
	return key, nil
}

// AssetURL hands out a presigned GET so clients fetch image bytes straight
// from the bucket.
func (s *Store) AssetURL(ctx context.Context, ref string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &ref,
	}, func(o *s3.PresignOptions) { o.Expires = s.assetTTL })
	if err != nil {
		return "", persistErr("presigning asset", err)
	}
	return req.URL, nil
}

func (s *Store) CreateAccount(ctx context.Context, email, passwordHash string, isAdmin bool) (*model.Account, error) {
	account := model.Account{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    s.now().UTC(),
	}
	av, err := attributevalue.MarshalMap(newAccountRecord(account))
	if err != nil {
		return nil, persistErr("marshaling account", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.table,
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(SK)"),
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return nil, fmt.Errorf("account %s: %w", email, gateway.ErrConflict)
	}
	if err != nil {
		return nil, persistErr("storing account", err)
	}
	return &account, nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.table,
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: accountPartition},
			"SK": &types.AttributeValueMemberS{Value: accountSK(email)},
		},
	})
	if err != nil {
		return nil, persistErr("getting account", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	var rec accountRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, persistErr("unmarshaling account", err)
	}
	return rec.account(), nil
}

// Stats walks the item partition once, counting kinds and statuses, and
// counts the account partition server-side.
func (s *Store) Stats(ctx context.Context) (gateway.Stats, error) {
	var stats gateway.Stats

	input := &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: itemPartition},
		},
		ProjectionExpression:     aws.String("kind, #s"),
		ExpressionAttributeNames: map[string]string{"#s": "item_status"},
	}
	for {
		out, err := s.db.Query(ctx, input)
		if err != nil {
			return gateway.Stats{}, persistErr("counting items", err)
		}
		for _, av := range out.Items {
			var rec itemRecord
			if err := attributevalue.UnmarshalMap(av, &rec); err != nil {
				return gateway.Stats{}, persistErr("unmarshaling item", err)
			}
			stats.Items++
			switch rec.Kind {
			case model.KindLost:
				stats.Lost++
			case model.KindFound:
				stats.Found++
			}
			if rec.Status == model.StatusArchived {
				stats.Archived++
			}
		}
		if out.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}

	accounts := &dynamodb.QueryInput{
		TableName:              &s.table,
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: accountPartition},
		},
		Select: types.SelectCount,
	}
	for {
		out, err := s.db.Query(ctx, accounts)
		if err != nil {
			return gateway.Stats{}, persistErr("counting accounts", err)
		}
		stats.Accounts += int(out.Count)
		if out.LastEvaluatedKey == nil {
			break
		}
		accounts.ExclusiveStartKey = out.LastEvaluatedKey
	}

	return stats, nil
}
