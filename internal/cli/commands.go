package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/spf13/cobra"

	"github.com/hengadev/savex"
)

// entryEnv is the environment of a keys --filter expression.
type entryEnv struct {
	Key  string `expr:"key"`
	Type string `expr:"type"`
	Size int    `expr:"size"`
}

// compileFilter compiles a boolean predicate over entryEnv.
func compileFilter(filter string) (*vm.Program, error) {
	program, err := expr.Compile(filter, expr.Env(entryEnv{}), expr.AsBool())
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid filter %q: %v", filter, err))
	}
	return program, nil
}

func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "List the keys of the archive",
		Long: `List the keys of the archive in storage order.

--filter takes an expression over key, type and size, e.g.
  savex keys --filter 'key startsWith "player." && size > 64'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var program *vm.Program
			if filter != "" {
				var err error
				if program, err = compileFilter(filter); err != nil {
					return err
				}
			}

			return withSession(cmd, rootOpts, func(s *session) error {
				entries, err := s.engine.Entries(cmd.Context(), s.config)
				if err != nil {
					return err
				}

				matched := make([]savex.EntryInfo, 0, len(entries))
				for _, entry := range entries {
					if program != nil {
						out, err := expr.Run(program, entryEnv{Key: entry.Key, Type: entry.Type, Size: entry.Size})
						if err != nil {
							return fmt.Errorf("evaluate filter on %q: %w", entry.Key, err)
						}
						if !out.(bool) {
							continue
						}
					}
					matched = append(matched, entry)
				}

				return formatter(cmd, rootOpts).Success(matched, func(w io.Writer) {
					for _, entry := range matched {
						fmt.Fprintln(w, entry.Key)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&filter, "filter", "", "expression selecting keys")
	return cmd
}

func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show the type tag and size of a key, and its value when it is a builtin type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return withSession(cmd, rootOpts, func(s *session) error {
				entries, err := s.engine.Entries(cmd.Context(), s.config)
				if err != nil {
					return err
				}
				var found *savex.EntryInfo
				for i := range entries {
					if entries[i].Key == key {
						found = &entries[i]
						break
					}
				}
				if found == nil {
					return fmt.Errorf("%w: '%s' in %s", savex.ErrKeyNotFound, key, s.config.FullPath())
				}

				// Values of types this process never registered stay opaque.
				value, err := savex.Load[any](cmd.Context(), s.engine, key, s.config)
				result := struct {
					savex.EntryInfo
					Value any `json:"value,omitempty"`
				}{EntryInfo: *found}
				if err == nil {
					result.Value = value
				}

				return formatter(cmd, rootOpts).Success(result, func(w io.Writer) {
					fmt.Fprintf(w, "%s\t%s\t%d bytes\n", found.Key, found.Type, found.Size)
					if result.Value != nil {
						fmt.Fprintf(w, "%v\n", result.Value)
					}
				})
			})
		},
	}
}

func NewRawCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "raw",
		Short: "Write the archive bytes, transforms undone, to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				data, err := s.engine.LoadRawBytes(cmd.Context(), s.config)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}
}

func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm",
		Short: "Delete the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				return s.engine.DeleteFile(cmd.Context(), s.config)
			})
		},
	}
}

func NewRemoveKeyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rmkey <key>",
		Short: "Delete a key from the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				return s.engine.DeleteKey(cmd.Context(), args[0], s.config)
			})
		},
	}
}

func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Copy the archive to its .bak sibling",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				return s.engine.CreateBackup(cmd.Context(), s.config)
			})
		},
	}
}

func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Replace the archive with its backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				restored, err := s.engine.RestoreBackup(cmd.Context(), s.config)
				if err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Success(map[string]bool{"restored": restored}, func(w io.Writer) {
					if restored {
						fmt.Fprintln(w, "restored", s.config.FullPath())
					} else {
						fmt.Fprintln(w, "no backup for", s.config.FullPath())
					}
				})
			})
		},
	}
}

func NewCopyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "copy <dst>",
		Short: "Copy the archive to dst in the same location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				return s.engine.CopyFile(cmd.Context(), s.config, s.config.WithPath(args[0]))
			})
		},
	}
}

func NewRenameCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <dst>",
		Short: "Move the archive to dst in the same location",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				return s.engine.RenameFile(cmd.Context(), s.config, s.config.WithPath(args[0]))
			})
		},
	}
}

func NewTimestampCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "timestamp",
		Short: "Print when the archive was last written",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				stamp, err := s.engine.GetTimestamp(cmd.Context(), s.config)
				if err != nil {
					return err
				}
				return formatter(cmd, rootOpts).Success(stamp, func(w io.Writer) {
					fmt.Fprintln(w, stamp.Format(time.RFC3339Nano))
				})
			})
		},
	}
}

func NewEncryptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt stdin to stdout with the archive password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				out, err := s.engine.EncryptBytes(cmd.Context(), data, s.config.Password)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}
}

func NewDecryptCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt stdin to stdout with the archive password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, rootOpts, func(s *session) error {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				out, err := s.engine.DecryptBytes(cmd.Context(), data, s.config.Password)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(out)
				return err
			})
		},
	}
}

func withSession(cmd *cobra.Command, rootOpts *RootOptions, fn func(s *session) error) error {
	s, err := rootOpts.open(cmd)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(s)
}

func formatter(cmd *cobra.Command, rootOpts *RootOptions) *OutputFormatter {
	return &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
}
