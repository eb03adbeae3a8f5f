package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"mypeeps/internal/view"

	"github.com/spf13/cobra"
)

var (
	personNotes string
	personName  string
	personPhoto string
)

var personCmd = &cobra.Command{
	Use:     "person",
	Aliases: []string{"people", "p"},
	Short:   "List and manage people",
}

var personLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List people, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		persons, _, err := snapshot(cmd.Context())
		if err != nil {
			return err
		}
		if len(persons) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No people yet.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tADDED\tPHOTO\tNOTES")
		for _, p := range persons {
			added := time.UnixMilli(p.CreatedAt).Format("2006-01-02 15:04")
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", shortID(p.ID), p.Name, added, p.ImageURL, oneLine(p.Notes))
		}
		return w.Flush()
	},
}

var personAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a person",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(args[0]) == "" {
			return errors.New("name must not be blank")
		}
		s, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		s.app.OpenAddPerson()
		s.app.Edit(func(st *view.State) {
			st.NewPerson.Name = args[0]
			st.NewPerson.Notes = personNotes
		})
		if personPhoto != "" {
			if err := uploadPhoto(cmd, s, view.ModalAddPerson, personPhoto); err != nil {
				return err
			}
		}
		if err := s.app.AddPerson(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s.\n", strings.TrimSpace(args[0]))
		return nil
	},
}

var personEditCmd = &cobra.Command{
	Use:   "edit <person>",
	Short: "Change a person's name, notes or photo",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := resolvePerson(s.app.Persons(), args[0])
		if err != nil {
			return err
		}
		if err := s.app.OpenEdit(p.ID); err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("name") && strings.TrimSpace(personName) == "" {
			return errors.New("name must not be blank")
		}
		s.app.Edit(func(st *view.State) {
			if flags.Changed("name") {
				st.Edit.Name = personName
			}
			if flags.Changed("notes") {
				st.Edit.Notes = personNotes
			}
		})
		if flags.Changed("photo") {
			if err := uploadPhoto(cmd, s, view.ModalEditPerson, personPhoto); err != nil {
				return err
			}
		}
		if err := s.app.SaveEdit(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved %s.\n", s.app.State().Edit.Name)
		return nil
	},
}

var personRmCmd = &cobra.Command{
	Use:     "rm <person>",
	Aliases: []string{"delete"},
	Short:   "Delete a person and remove them from every group",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := resolvePerson(s.app.Persons(), args[0])
		if err != nil {
			return err
		}
		if err := s.app.OpenDelete(p.ID); err != nil {
			return err
		}
		if err := s.app.ConfirmDelete(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", p.Name)
		return nil
	},
}

func init() {
	personAddCmd.Flags().StringVar(&personNotes, "notes", "", "free-form notes")
	personAddCmd.Flags().StringVar(&personPhoto, "photo", "", "image file to upload as the photo")

	personEditCmd.Flags().StringVar(&personName, "name", "", "new name")
	personEditCmd.Flags().StringVar(&personNotes, "notes", "", "new notes")
	personEditCmd.Flags().StringVar(&personPhoto, "photo", "", "image file to upload; empty removes the photo")

	personCmd.AddCommand(personLsCmd, personAddCmd, personEditCmd, personRmCmd)
}

// uploadPhoto puts path on the open form. An empty path clears the photo.
func uploadPhoto(cmd *cobra.Command, s *session, modal view.Modal, path string) error {
	if path == "" {
		s.app.Edit(func(st *view.State) {
			if f := st.Form(modal); f != nil {
				f.PhotoURL = ""
			}
		})
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}
	if err := s.app.UploadPhoto(cmd.Context(), modal, filepath.Base(path), data); err != nil {
		return fmt.Errorf("upload photo: %w", err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func oneLine(s string) string {
	line, _, more := strings.Cut(s, "\n")
	if more {
		line += " ..."
	}
	return line
}
