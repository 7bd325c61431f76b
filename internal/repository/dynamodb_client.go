package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"chat-widget/internal/domain"
)

const (
	skPrefixTurn      = "TURN#"
	skMeta            = "META#"
	defaultSessionTTL = 24 * time.Hour

	// DynamoDB caps a transaction at 100 items; one slot is the meta item.
	maxTurnsPerWrite = 99
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client stores page-session transcripts in a DynamoDB table. Items expire
// through the table's TTL attribute.
type Client struct {
	api       dynamodbAPI
	tableName string
	ttl       time.Duration
	now       func() time.Time
}

// New creates a new repository Client. A non-positive ttl selects 24h.
func New(api dynamodbAPI, tableName string, ttl time.Duration) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &Client{api: api, tableName: tableName, ttl: ttl, now: time.Now}, nil
}

// sessionPK returns the DynamoDB partition key for a session.
func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

// turnSK zero-pads seq so lexical order equals insertion order.
func turnSK(seq int) string {
	return fmt.Sprintf("%s%08d", skPrefixTurn, seq)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(c.ttl).Unix()
}

// CreateSession writes the seed turns and the meta item. It fails if the
// session already exists.
func (c *Client) CreateSession(ctx context.Context, sessionID string, turns []domain.Turn) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: CreateSession: session id is required")
	}
	if len(turns) == 0 {
		return errors.New("repository: CreateSession: seed turns are required")
	}
	meta := c.NewSessionMeta(sessionID, "", len(turns))
	items := c.turnPuts(sessionID, 0, turns)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(c.tableName),
			Item:                metaItem(meta),
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		},
	})
	if err := c.transact(ctx, items); err != nil {
		return fmt.Errorf("repository: CreateSession: %w", err)
	}
	return nil
}

// AppendTurns writes turns starting at sequence base and updates the meta
// item. The meta write is conditioned on the stored turn count still being
// base, so two cycles racing on one session cannot both commit; the loser
// gets domain.ErrTurnConflict.
func (c *Client) AppendTurns(ctx context.Context, sessionID string, base int, turns []domain.Turn, displayName string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("repository: AppendTurns: session id is required")
	}
	if len(turns) == 0 {
		return nil
	}
	if len(turns) > maxTurnsPerWrite {
		return fmt.Errorf("repository: AppendTurns: %d turns exceed one transaction", len(turns))
	}
	meta := c.NewSessionMeta(sessionID, displayName, base+len(turns))
	items := c.turnPuts(sessionID, base, turns)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(c.tableName),
			Item:                metaItem(meta),
			ConditionExpression: aws.String("turns = :base"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":base": &types.AttributeValueMemberN{Value: strconv.Itoa(base)},
			},
		},
	})
	if err := c.transact(ctx, items); err != nil {
		return fmt.Errorf("repository: AppendTurns: %w", err)
	}
	return nil
}

// LoadSession reads the meta item and every turn of a session in order.
// Items past their TTL may still be readable until DynamoDB sweeps them, so
// expiry is checked here. A session whose meta item has expired, or whose
// turns no longer add up to the recorded count, is reported as
// domain.ErrSessionNotFound: its transcript cannot be replayed intact.
func (c *Client) LoadSession(ctx context.Context, sessionID string) (domain.Session, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: LoadSession get meta: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Session{}, fmt.Errorf("repository: LoadSession %q: %w", sessionID, domain.ErrSessionNotFound)
	}
	now := c.now().Unix()
	if expired(out.Item, now) {
		return domain.Session{}, fmt.Errorf("repository: LoadSession %q expired: %w", sessionID, domain.ErrSessionNotFound)
	}
	want, err := intAttr(out.Item, "turns")
	if err != nil {
		return domain.Session{}, fmt.Errorf("repository: LoadSession meta: %w", err)
	}
	name, _ := strAttr(out.Item, "displayName") // allow empty

	turns, err := c.queryTurns(ctx, sessionID, now)
	if err != nil {
		return domain.Session{}, err
	}
	if len(turns) != want {
		return domain.Session{}, fmt.Errorf("repository: LoadSession %q has %d of %d turns: %w",
			sessionID, len(turns), want, domain.ErrSessionNotFound)
	}
	return domain.Session{ID: sessionID, DisplayName: name, Turns: turns}, nil
}

// queryTurns returns the live turns of a session, skipping expired items.
func (c *Client) queryTurns(ctx context.Context, sessionID string, now int64) ([]domain.Turn, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixTurn},
		},
		ScanIndexForward: aws.Bool(true),
		ConsistentRead:   aws.Bool(true),
	}

	var turns []domain.Turn
	for {
		out, err := c.api.Query(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("repository: LoadSession query: %w", err)
		}
		for _, item := range out.Items {
			if expired(item, now) {
				continue
			}
			st, err := itemToTurn(item)
			if err != nil {
				return nil, fmt.Errorf("repository: LoadSession unmarshal: %w", err)
			}
			turns = append(turns, domain.Turn{Role: st.Role, Content: st.Content})
		}
		if len(out.LastEvaluatedKey) == 0 {
			return turns, nil
		}
		in.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// expired reports whether item carries a ttl at or before now. Items
// without a readable ttl never expire.
func expired(item map[string]types.AttributeValue, now int64) bool {
	n, ok := item["ttl"].(*types.AttributeValueMemberN)
	if !ok {
		return false
	}
	ttl, err := strconv.ParseInt(n.Value, 10, 64)
	return err == nil && ttl <= now
}

func (c *Client) transact(ctx context.Context, items []types.TransactWriteItem) error {
	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}
	var canceled *types.TransactionCanceledException
	if errors.As(err, &canceled) {
		for _, r := range canceled.CancellationReasons {
			if aws.ToString(r.Code) == "ConditionalCheckFailed" {
				return fmt.Errorf("%w: %v", domain.ErrTurnConflict, err)
			}
		}
	}
	return err
}

func (c *Client) turnPuts(sessionID string, base int, turns []domain.Turn) []types.TransactWriteItem {
	items := make([]types.TransactWriteItem, 0, len(turns)+1)
	for i, t := range turns {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName:           aws.String(c.tableName),
				Item:                turnItem(c.NewStoredTurn(sessionID, base+i, t)),
				ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
			},
		})
	}
	return items
}

// NewStoredTurn constructs a StoredTurn with PK/SK/TTL set.
func (c *Client) NewStoredTurn(sessionID string, seq int, t domain.Turn) domain.StoredTurn {
	return domain.StoredTurn{
		PK:        sessionPK(sessionID),
		SK:        turnSK(seq),
		SessionID: sessionID,
		Seq:       seq,
		Role:      t.Role,
		Content:   t.Content,
		TTL:       c.ttlValue(),
	}
}

// NewSessionMeta constructs a SessionMeta record.
func (c *Client) NewSessionMeta(sessionID, displayName string, turns int) domain.SessionMeta {
	return domain.SessionMeta{
		PK:           sessionPK(sessionID),
		SK:           skMeta,
		SessionID:    sessionID,
		DisplayName:  displayName,
		LastActivity: c.now().UTC().Format(time.RFC3339),
		Turns:        turns,
		TTL:          c.ttlValue(),
	}
}

// itemToTurn converts a DynamoDB attribute map to a StoredTurn.
func itemToTurn(item map[string]types.AttributeValue) (domain.StoredTurn, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.StoredTurn{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.StoredTurn{}, err
	}
	role, err := strAttr(item, "role")
	if err != nil {
		return domain.StoredTurn{}, err
	}
	if !domain.Role(role).Valid() {
		return domain.StoredTurn{}, fmt.Errorf("repository: unknown role %q", role)
	}
	content, err := strAttr(item, "content")
	if err != nil {
		return domain.StoredTurn{}, err
	}
	seq, _ := intAttr(item, "seq") // informational; SK carries the order

	return domain.StoredTurn{
		PK:      pk,
		SK:      sk,
		Seq:     seq,
		Role:    domain.Role(role),
		Content: content,
	}, nil
}

func turnItem(t domain.StoredTurn) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":        &types.AttributeValueMemberS{Value: t.PK},
		"SK":        &types.AttributeValueMemberS{Value: t.SK},
		"sessionId": &types.AttributeValueMemberS{Value: t.SessionID},
		"seq":       &types.AttributeValueMemberN{Value: strconv.Itoa(t.Seq)},
		"role":      &types.AttributeValueMemberS{Value: string(t.Role)},
		"content":   &types.AttributeValueMemberS{Value: t.Content},
		"ttl":       &types.AttributeValueMemberN{Value: strconv.FormatInt(t.TTL, 10)},
	}
}

func metaItem(meta domain.SessionMeta) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":           &types.AttributeValueMemberS{Value: meta.PK},
		"SK":           &types.AttributeValueMemberS{Value: meta.SK},
		"sessionId":    &types.AttributeValueMemberS{Value: meta.SessionID},
		"displayName":  &types.AttributeValueMemberS{Value: meta.DisplayName},
		"lastActivity": &types.AttributeValueMemberS{Value: meta.LastActivity},
		"turns":        &types.AttributeValueMemberN{Value: strconv.Itoa(meta.Turns)},
		"ttl":          &types.AttributeValueMemberN{Value: strconv.FormatInt(meta.TTL, 10)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
