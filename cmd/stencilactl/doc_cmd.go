package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stencilacore/patch"
	"stencilacore/schema"
)

func newDocCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Diff and patch document trees",
	}
	cmd.AddCommand(newDocDiffCmd(), newDocApplyCmd())
	return cmd
}

func newDocDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [from] [to]",
		Short: "Print the patch turning [from]'s document tree into [to]'s",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := loadNode(args[0])
			if err != nil {
				return err
			}
			to, err := loadNode(args[1])
			if err != nil {
				return err
			}
			p := patch.Diff(from, to)
			out, err := json.MarshalIndent(p, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal patch: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newDocApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply [root] [patch]",
		Short: "Apply a patch file to a document tree and print the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := loadNode(args[0])
			if err != nil {
				return err
			}
			patchData, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read patch file: %w", err)
			}
			var p patch.Patch
			if err := json.Unmarshal(patchData, &p); err != nil {
				return fmt.Errorf("parse patch file: %w", err)
			}
			if err := patch.Validate(p); err != nil {
				return fmt.Errorf("invalid patch: %w", err)
			}
			result, err := patch.Apply(root, p)
			if err != nil {
				return fmt.Errorf("apply patch: %w", err)
			}
			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal result: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func loadNode(path string) (schema.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	node, err := schema.DecodeNode(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return node, nil
}
