package conversation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akuznetsov/taskboard/internal/apperrors"
	"github.com/akuznetsov/taskboard/internal/models"
	"github.com/akuznetsov/taskboard/internal/repository/postgres"
	"github.com/akuznetsov/taskboard/internal/testutil"
)

func Test_ConversationService(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	// Helper to create ConversationService within transaction with two users,
	// the second one is there to probe cross user access
	withTx := func(t *testing.T, fn func(s *ConversationService, tx pgx.Tx, user models.User, yaUser models.User)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)
			convService := NewService(storage.Conversation())

			user, err := storage.User().CreateUser(t.Context(), "test-user@example.com", "password-hash")
			require.NoError(t, err, "creating user should not fail")
			yaUser, err := storage.User().CreateUser(t.Context(), "ya-user@example.com", "password-hash")
			require.NoError(t, err, "creating ya-user should not fail")

			fn(convService, tx, user, yaUser)
		})
	}

	t.Run("Create", func(t *testing.T) {
		t.Run("create without title", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
				conv, err := s.Create(t.Context(), user.ID, "")

				require.NoError(t, err)
				require.NotEmpty(t, conv.ID)
				assert.Equal(t, user.ID, conv.UserID)
				assert.Nil(t, conv.Title, "title should stay unset")
				assert.NotZero(t, conv.CreatedAt)
				assert.NotZero(t, conv.UpdatedAt)
			})
		})

		t.Run("create with title", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
				conv, err := s.Create(t.Context(), user.ID, "  Groceries plan ")

				require.NoError(t, err)
				require.NotNil(t, conv.Title)
				require.Equal(t, "Groceries plan", *conv.Title, "title should be trimmed")
			})
		})

		t.Run("too long title", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
				_, err := s.Create(t.Context(), user.ID, strings.Repeat("a", 256))
				require.ErrorIs(t, err, apperrors.ErrConversationInvalid)
			})
		})
	})

	t.Run("Get", func(t *testing.T) {
		t.Run("own conversation ok", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
				created, err := s.Create(t.Context(), user.ID, "")
				require.NoError(t, err)

				got, err := s.Get(t.Context(), user.ID, created.ID)
				require.NoError(t, err)
				require.Equal(t, created.ID, got.ID)
			})
		})

		t.Run("other user's conversation is denied not hidden", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, yaUser models.User) {
				created, err := s.Create(t.Context(), user.ID, "")
				require.NoError(t, err)

				_, err = s.Get(t.Context(), yaUser.ID, created.ID)
				require.ErrorIs(t, err, apperrors.ErrAccessDenied)
			})
		})

		t.Run("unknown conversation", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
				_, err := s.Get(t.Context(), user.ID, uuid.New())
				require.ErrorIs(t, err, apperrors.ErrConversationNotFound)
			})
		})
	})

	t.Run("List", func(t *testing.T) {
		t.Run("lists own conversations newest activity first", func(t *testing.T) {
			withTx(t, func(s *ConversationService, tx pgx.Tx, user models.User, yaUser models.User) {
				first, err := s.Create(t.Context(), user.ID, "first")
				require.NoError(t, err)
				second, err := s.Create(t.Context(), user.ID, "second")
				require.NoError(t, err)
				_, err = s.Create(t.Context(), yaUser.ID, "not mine")
				require.NoError(t, err)

				// A tx freezes now() so updated_at has to be set by hand
				_, err = tx.Exec(t.Context(), "UPDATE conversations SET updated_at = updated_at + interval '1 hour' WHERE id = $1", first.ID)
				require.NoError(t, err)

				convs, err := s.List(t.Context(), user.ID, 0)
				require.NoError(t, err)
				require.Len(t, convs, 2, "only own conversations should be listed")
				assert.Equal(t, first.ID, convs[0].ID, "recently touched conversation goes first")
				assert.Equal(t, second.ID, convs[1].ID)
			})
		})

		t.Run("limit caps the list", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
				for range 3 {
					_, err := s.Create(t.Context(), user.ID, "")
					require.NoError(t, err)
				}

				convs, err := s.List(t.Context(), user.ID, 2)
				require.NoError(t, err)
				require.Len(t, convs, 2)
			})
		})
	})

	t.Run("AddMessage", func(t *testing.T) {
		t.Run("append message", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
				conv, err := s.Create(t.Context(), user.ID, "titled")
				require.NoError(t, err)

				msg, err := s.AddMessage(t.Context(), user.ID, conv.ID, MessageParams{
					Role:     models.MessageRoleUser,
					Content:  "hello there",
					Metadata: map[string]any{"client": "web"},
				})

				require.NoError(t, err)
				require.NotEmpty(t, msg.ID)
				assert.Equal(t, conv.ID, msg.ConversationID)
				assert.Equal(t, models.MessageRoleUser, msg.Role)
				assert.Equal(t, "hello there", msg.Content)
				assert.Equal(t, map[string]any{"client": "web"}, msg.Metadata)
				assert.NotZero(t, msg.CreatedAt)
			})
		})

		t.Run("first user message titles the conversation", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
				conv, err := s.Create(t.Context(), user.ID, "")
				require.NoError(t, err)

				_, err = s.AddMessage(t.Context(), user.ID, conv.ID, MessageParams{
					Role:    models.MessageRoleUser,
					Content: "Plan my week:\n  groceries, gym and the tax report",
				})
				require.NoError(t, err)

				got, err := s.Get(t.Context(), user.ID, conv.ID)
				require.NoError(t, err)
				require.NotNil(t, got.Title)
				require.Equal(t, "Plan my week: groceries, gym and the tax report", *got.Title,
					"title should be the first message with whitespace collapsed")
			})
		})

		t.Run("auto title is cut to 50 letters", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
				conv, err := s.Create(t.Context(), user.ID, "")
				require.NoError(t, err)

				_, err = s.AddMessage(t.Context(), user.ID, conv.ID, MessageParams{
					Role:    models.MessageRoleUser,
					Content: strings.Repeat("a", 80),
				})
				require.NoError(t, err)

				got, err := s.Get(t.Context(), user.ID, conv.ID)
				require.NoError(t, err)
				require.NotNil(t, got.Title)
				require.Equal(t, strings.Repeat("a", 50), *got.Title)
			})
		})

		t.Run("assistant message does not title the conversation", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
				conv, err := s.Create(t.Context(), user.ID, "")
				require.NoError(t, err)

				_, err = s.AddMessage(t.Context(), user.ID, conv.ID, MessageParams{
					Role:    models.MessageRoleAssistant,
					Content: "How can I help?",
				})
				require.NoError(t, err)

				got, err := s.Get(t.Context(), user.ID, conv.ID)
				require.NoError(t, err)
				require.Nil(t, got.Title)
			})
		})

		t.Run("existing title is kept", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
				conv, err := s.Create(t.Context(), user.ID, "My title")
				require.NoError(t, err)

				_, err = s.AddMessage(t.Context(), user.ID, conv.ID, MessageParams{
					Role:    models.MessageRoleUser,
					Content: "something entirely different",
				})
				require.NoError(t, err)

				got, err := s.Get(t.Context(), user.ID, conv.ID)
				require.NoError(t, err)
				require.NotNil(t, got.Title)
				require.Equal(t, "My title", *got.Title)
			})
		})

		t.Run("rejects bad input", func(t *testing.T) {
			cases := map[string]MessageParams{
				"unknown role":  {Role: "bot", Content: "hi"},
				"empty content": {Role: models.MessageRoleUser, Content: "  "},
			}

			for name, params := range cases {
				t.Run(name, func(t *testing.T) {
					withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, _ models.User) {
						conv, err := s.Create(t.Context(), user.ID, "")
						require.NoError(t, err)

						_, err = s.AddMessage(t.Context(), user.ID, conv.ID, params)
						require.ErrorIs(t, err, apperrors.ErrMessageInvalid)
					})
				})
			}
		})

		t.Run("other user's conversation", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, yaUser models.User) {
				conv, err := s.Create(t.Context(), user.ID, "")
				require.NoError(t, err)

				_, err = s.AddMessage(t.Context(), yaUser.ID, conv.ID, MessageParams{
					Role:    models.MessageRoleUser,
					Content: "hi",
				})
				require.ErrorIs(t, err, apperrors.ErrAccessDenied)
			})
		})
	})

	t.Run("Messages", func(t *testing.T) {
		t.Run("messages come back oldest first", func(t *testing.T) {
			withTx(t, func(s *ConversationService, tx pgx.Tx, user models.User, _ models.User) {
				conv, err := s.Create(t.Context(), user.ID, "")
				require.NoError(t, err)

				first, err := s.AddMessage(t.Context(), user.ID, conv.ID, MessageParams{Role: models.MessageRoleUser, Content: "first"})
				require.NoError(t, err)
				second, err := s.AddMessage(t.Context(), user.ID, conv.ID, MessageParams{Role: models.MessageRoleAssistant, Content: "second"})
				require.NoError(t, err)

				// Make the stored order unambiguous
				_, err = tx.Exec(t.Context(), "UPDATE messages SET created_at = created_at - interval '1 minute' WHERE id = $1", first.ID)
				require.NoError(t, err)

				messages, err := s.Messages(t.Context(), user.ID, conv.ID)
				require.NoError(t, err)
				require.Len(t, messages, 2)
				assert.Equal(t, first.ID, messages[0].ID)
				assert.Equal(t, second.ID, messages[1].ID)
				assert.Equal(t, map[string]any{}, messages[0].Metadata, "missing metadata should come back empty")
			})
		})

		t.Run("other user's conversation", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, yaUser models.User) {
				conv, err := s.Create(t.Context(), user.ID, "")
				require.NoError(t, err)

				_, err = s.Messages(t.Context(), yaUser.ID, conv.ID)
				require.ErrorIs(t, err, apperrors.ErrAccessDenied)
			})
		})
	})

	t.Run("Delete", func(t *testing.T) {
		t.Run("delete removes messages too", func(t *testing.T) {
			withTx(t, func(s *ConversationService, tx pgx.Tx, user models.User, _ models.User) {
				conv, err := s.Create(t.Context(), user.ID, "")
				require.NoError(t, err)
				_, err = s.AddMessage(t.Context(), user.ID, conv.ID, MessageParams{Role: models.MessageRoleUser, Content: "hi"})
				require.NoError(t, err)

				require.NoError(t, s.Delete(t.Context(), user.ID, conv.ID))

				_, err = s.Get(t.Context(), user.ID, conv.ID)
				require.ErrorIs(t, err, apperrors.ErrConversationNotFound)

				var left int
				err = tx.QueryRow(t.Context(), "SELECT count(*) FROM messages WHERE conversation_id = $1", conv.ID).Scan(&left)
				require.NoError(t, err)
				require.Zero(t, left, "messages should be gone with the conversation")
			})
		})

		t.Run("other user's conversation survives", func(t *testing.T) {
			withTx(t, func(s *ConversationService, _ pgx.Tx, user models.User, yaUser models.User) {
				conv, err := s.Create(t.Context(), user.ID, "")
				require.NoError(t, err)

				err = s.Delete(t.Context(), yaUser.ID, conv.ID)
				require.ErrorIs(t, err, apperrors.ErrAccessDenied)

				_, err = s.Get(t.Context(), user.ID, conv.ID)
				require.NoError(t, err)
			})
		})
	})
}

func Test_autoTitle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", autoTitle("hello"))
	assert.Equal(t, "one two three", autoTitle("  one\n\ttwo   three "))
	assert.Equal(t, strings.Repeat("x", 50), autoTitle(strings.Repeat("x", 51)))
	assert.Equal(t, strings.Repeat("я", 50), autoTitle(strings.Repeat("я", 60)), "cut counts runes not bytes")
}
