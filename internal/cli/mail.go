package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/nhle/mailbox-monitor/internal/model"
	"github.com/nhle/mailbox-monitor/internal/source"
	"github.com/nhle/mailbox-monitor/internal/theme"
)

// withSession opens a session, runs fn and closes the log file.
func withSession(cmd *cobra.Command, fn func(*session) error) error {
	s, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer func() {
		_ = s.Close()
	}()
	return fn(s)
}

// logFailure logs err with its auth correlation id, if any, and returns it.
func logFailure(s *session, op string, err error) error {
	attrs := []any{"op", op, "error", err}
	var authErr *source.AuthError
	if errors.As(err, &authErr) {
		attrs = append(attrs, "code", authErr.Code, "correlation_id", authErr.CorrelationID)
	}
	s.logger.Error("mailbox operation failed", attrs...)
	return err
}

func newSentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sent",
		Short: "Show the most recent sent messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(s *session) error {
				msgs, err := s.mailbox.ReadSentMails(cmd.Context())
				if err != nil {
					return logFailure(s, "read_sent_mails", err)
				}

				ids := make([]string, 0, len(msgs))
				for id := range msgs {
					ids = append(ids, id)
				}
				sort.Strings(ids)

				fmt.Fprintln(cmd.OutOrStdout(), theme.Summaries("Sent items", ids, msgs))
				return nil
			})
		},
	}
}

func newMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "message <id>",
		Short: "Show one message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				msg, err := s.mailbox.GetMessageDetails(cmd.Context(), args[0])
				if err != nil {
					return logFailure(s, "get_message_details", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme.Summary(msg))
				return nil
			})
		},
	}
}

func newThreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thread <conversation-id>",
		Short: "Show the first inbox message of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				msg, err := s.mailbox.GetConversationThread(cmd.Context(), args[0])
				if err != nil {
					return logFailure(s, "get_conversation_thread", err)
				}
				if msg == nil {
					fmt.Fprintln(cmd.OutOrStdout(), theme.HelpStyle.Render("no inbox message in that conversation"))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme.Summary(msg))
				return nil
			})
		},
	}
}

func newReadFolderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-folder <name>",
		Short: "Read and mark the newest unread message in an inbox child folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				msg, err := s.mailbox.ReadFolderMails(cmd.Context(), args[0])
				return printRead(cmd, s, "read_folder_mails", msg, err)
			})
		},
	}
}

func newReadInboxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read-inbox",
		Short: "Read and mark the newest unread inbox message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(s *session) error {
				msg, err := s.mailbox.ReadInboxMails(cmd.Context())
				return printRead(cmd, s, "read_inbox_mails", msg, err)
			})
		},
	}
}

func printRead(cmd *cobra.Command, s *session, op string, msg *model.MessageSummary, err error) error {
	if source.IsNoUnread(err) {
		fmt.Fprintln(cmd.OutOrStdout(), theme.HelpStyle.Render(err.Error()))
		return nil
	}
	if err != nil {
		return logFailure(s, op, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), theme.Summary(msg))
	return nil
}

func newAttachmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attachment <message-id> <path>",
		Short: "Save the first attachment of a message to path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				if err := s.mailbox.GetAttachmentInFile(cmd.Context(), args[0], args[1]); err != nil {
					return logFailure(s, "get_attachment_in_file", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme.Success("saved "+args[1]))
				return nil
			})
		},
	}
}

func newAttachmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attachments <message-id>",
		Short: "List attachment metadata of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				atts, err := s.mailbox.ListAttachments(cmd.Context(), args[0])
				if err != nil {
					return logFailure(s, "list_attachments", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme.Attachments(args[0], atts))
				return nil
			})
		},
	}
}

func newFoldersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folders",
		Short: "List top-level folders, or inbox child folders with --inbox",
		Args:  cobra.NoArgs,
	}
	inbox := cmd.Flags().Bool("inbox", false, "list the inbox child folders instead")

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return withSession(cmd, func(s *session) error {
			var (
				folders []model.Folder
				err     error
				title   = "Folders"
			)
			if *inbox {
				title = "Inbox folders"
				folders, err = s.mailbox.ListChildFolders(cmd.Context())
			} else {
				folders, err = s.mailbox.ListFolders(cmd.Context())
			}
			if err != nil {
				return logFailure(s, "list_folders", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), theme.Folders(title, folders))
			return nil
		})
	}
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(s *session) error {
				if err := s.provider.Forget(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), theme.Success("token cache cleared for "+s.cfg.Username))
				return nil
			})
		},
	}
}
