package memory

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps each conversation as one document holding a
// messages array, at collection/{partition}/messages/{sessionID}.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a Firestore client for projectID. A non-empty
// credentialsFile overrides application default credentials.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

type firestoreConversation struct {
	Messages []Turn `firestore:"messages"`
}

func (s *FirestoreStore) doc(key Key) *firestore.DocumentRef {
	return s.client.Collection(key.Collection).Doc(key.Partition).Collection("messages").Doc(key.SessionID)
}

// Recent returns up to limit of the newest turns, oldest first.
func (s *FirestoreStore) Recent(ctx context.Context, key Key, limit int) ([]Turn, error) {
	snap, err := s.doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}

	var conv firestoreConversation
	if err := snap.DataTo(&conv); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}

	turns := conv.Messages
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	return turns, nil
}

// Append adds turns to the document's messages array, creating it if absent.
func (s *FirestoreStore) Append(ctx context.Context, key Key, turns ...Turn) error {
	if len(turns) == 0 {
		return nil
	}

	ref := s.doc(key)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var conv firestoreConversation
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			if err := snap.DataTo(&conv); err != nil {
				return err
			}
		case status.Code(err) == codes.NotFound:
		default:
			return err
		}

		conv.Messages = append(conv.Messages, turns...)
		return tx.Set(ref, conv)
	})
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// Close closes the Firestore client.
func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
