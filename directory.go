package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/centerdevice-go/internal/centerdevice"
)

func newUsersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users in your organization",
		Args:  cobra.NoArgs,
		RunE:  runUsers,
	}

	cmd.Flags().Bool("all", false, "include blocked and invited users")

	return cmd
}

func newCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE:  runCollections,
	}

	cmd.Flags().Bool("public", false, "include public collections")
	cmd.Flags().String("name", "", "only collections with this name")
	cmd.Flags().StringSlice("id", nil, "only collections with this id (repeatable)")

	return cmd
}

func runUsers(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())

	all, err := cmd.Flags().GetBool("all")
	if err != nil {
		return err
	}

	sess, err := cc.openSession()
	if err != nil {
		return err
	}

	users, err := withRefresh(cmd.Context(), cc, sess, func(ctx context.Context) ([]centerdevice.User, error) {
		return sess.SearchUsers(ctx, all)
	})
	if err != nil {
		return fmt.Errorf("users: %w", err)
	}

	if cc.Flags.JSON {
		if users == nil {
			users = []centerdevice.User{}
		}

		return printJSON(cc.Out, users)
	}

	rows := make([][]string, 0, len(users))
	for i := range users {
		u := &users[i]
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		rows = append(rows, []string{u.ID, string(u.Status), string(u.Role), u.Email, name})
	}

	printTable(cc.Out, []string{"ID", "STATUS", "ROLE", "EMAIL", "NAME"}, rows)

	return nil
}

func runCollections(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())

	q, err := collectionsFromFlags(cmd)
	if err != nil {
		return err
	}

	sess, err := cc.openSession()
	if err != nil {
		return err
	}

	collections, err := withRefresh(cmd.Context(), cc, sess, func(ctx context.Context) ([]centerdevice.Collection, error) {
		return sess.SearchCollections(ctx, q)
	})
	if err != nil {
		return fmt.Errorf("collections: %w", err)
	}

	if cc.Flags.JSON {
		if collections == nil {
			collections = []centerdevice.Collection{}
		}

		return printJSON(cc.Out, collections)
	}

	rows := make([][]string, 0, len(collections))
	for _, c := range collections {
		rows = append(rows, []string{c.ID, strconv.FormatBool(c.Public), c.Name})
	}

	printTable(cc.Out, []string{"ID", "PUBLIC", "NAME"}, rows)

	return nil
}

func collectionsFromFlags(cmd *cobra.Command) (centerdevice.CollectionsQuery, error) {
	var q centerdevice.CollectionsQuery

	var err error

	if q.IncludePublic, err = cmd.Flags().GetBool("public"); err != nil {
		return q, err
	}

	if q.Name, err = cmd.Flags().GetString("name"); err != nil {
		return q, err
	}

	if q.IDs, err = cmd.Flags().GetStringSlice("id"); err != nil {
		return q, err
	}

	return q, nil
}
