package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"mypeeps/internal/domain"
	"mypeeps/internal/view"

	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:     "group",
	Aliases: []string{"groups", "g"},
	Short:   "List and manage groups",
}

var groupLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List groups with their member counts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		persons, groups, err := snapshot(cmd.Context())
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No groups yet.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tMEMBERS")
		for _, g := range groups {
			fmt.Fprintf(w, "%s\t%s\t%d\n", shortID(g.ID), g.Title, len(domain.PeopleIn(persons, g.PersonIDs)))
		}
		return w.Flush()
	},
}

var groupAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create an empty group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(args[0]) == "" {
			return errors.New("title must not be blank")
		}
		s, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		s.app.OpenAddGroup()
		s.app.Edit(func(st *view.State) { st.NewGroup.Title = args[0] })
		if err := s.app.AddGroup(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %s.\n", strings.TrimSpace(args[0]))
		return nil
	},
}

var groupRmCmd = &cobra.Command{
	Use:     "rm <group>",
	Aliases: []string{"delete"},
	Short:   "Delete a group; its members are kept",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		g, err := resolveGroup(s.app.Groups(), args[0])
		if err != nil {
			return err
		}
		if err := s.app.DeleteGroup(cmd.Context(), g.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s.\n", g.Title)
		return nil
	},
}

var groupShowCmd = &cobra.Command{
	Use:   "show <group>",
	Short: "List the members of a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		g, err := resolveGroup(s.app.Groups(), args[0])
		if err != nil {
			return err
		}
		if err := s.app.SelectGroup(g.ID); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, g.Title)
		members := s.app.Members(*s.app.State().Selected)
		if len(members) == 0 {
			fmt.Fprintln(out, "  Nobody in this group yet.")
			return nil
		}
		for _, p := range members {
			fmt.Fprintf(out, "  %s  %s\n", shortID(p.ID), p.Name)
		}
		return nil
	},
}

var groupAssignCmd = &cobra.Command{
	Use:   "assign <person> [group...]",
	Short: "Make a person a member of exactly the given groups",
	Long: `Make a person a member of exactly the given groups.

The person is removed from every group not named. With no groups the person
leaves all of them.`,
	Args: cobra.MinimumNArgs(1),
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
		groups := s.app.Groups()
		want := make(map[string]bool, len(args)-1)
		titles := make([]string, 0, len(args)-1)
		for _, ref := range args[1:] {
			g, err := resolveGroup(groups, ref)
			if err != nil {
				return err
			}
			want[g.ID] = true
			titles = append(titles, g.Title)
		}

		if err := s.app.OpenAssign(p.ID); err != nil {
			return err
		}
		s.app.Edit(func(st *view.State) { st.Assign.Checked = want })
		if err := s.app.SaveAssignment(cmd.Context()); err != nil {
			return err
		}
		if len(titles) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is in no groups.\n", p.Name)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is in %s.\n", p.Name, strings.Join(titles, ", "))
		return nil
	},
}

var groupUnassignCmd = &cobra.Command{
	Use:   "unassign <group> <person>",
	Short: "Remove a person from one group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := open(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer s.Close()

		g, err := resolveGroup(s.app.Groups(), args[0])
		if err != nil {
			return err
		}
		p, err := resolvePerson(s.app.Members(g), args[1])
		if err != nil {
			return fmt.Errorf("%w in %s", err, g.Title)
		}
		if err := s.app.SelectGroup(g.ID); err != nil {
			return err
		}
		if err := s.app.RemoveFromSelectedGroup(cmd.Context(), p.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from %s.\n", p.Name, g.Title)
		return nil
	},
}

func init() {
	groupCmd.AddCommand(groupLsCmd, groupAddCmd, groupRmCmd, groupShowCmd, groupAssignCmd, groupUnassignCmd)
}
