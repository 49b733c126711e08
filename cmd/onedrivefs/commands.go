package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rkhwaja/fs.onedrivefs/fs"
)

// withFs opens the filesystem, runs fn and closes it again
func withFs(fn func(fsys fs.Fs) error) (err error) {
	fsys, err := newFs()
	if err != nil {
		return err
	}
	defer fs.CheckClose(fsys, &err)
	return fn(fsys)
}

var lsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List the contents of a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFs(func(fsys fs.Fs) error {
			entries, err := fsys.ReadDir(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, entry := range entries {
				if entry.IsDir() {
					fmt.Printf("%12s %s/\n", "", entry.Name())
				} else {
					fmt.Printf("%12d %s\n", entry.Size(), entry.Name())
				}
			}
			return nil
		})
	},
}

var catCmd = &cobra.Command{
	Use:   "cat <path>",
	Short: "Write the contents of a file to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFs(func(fsys fs.Fs) (err error) {
			file, err := fsys.Open(cmd.Context(), args[0], "r")
			if err != nil {
				return err
			}
			defer fs.CheckClose(file, &err)
			_, err = io.Copy(os.Stdout, file)
			return err
		})
	},
}

var getCmd = &cobra.Command{
	Use:   "get <remote> <local>",
	Short: "Download a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFs(func(fsys fs.Fs) (err error) {
			file, err := fsys.Open(cmd.Context(), args[0], "r")
			if err != nil {
				return err
			}
			defer fs.CheckClose(file, &err)
			out, err := os.Create(args[1])
			if err != nil {
				return err
			}
			defer fs.CheckClose(out, &err)
			_, err = io.Copy(out, file)
			return err
		})
	},
}

var putCmd = &cobra.Command{
	Use:   "put <local> <remote>",
	Short: "Upload a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFs(func(fsys fs.Fs) (err error) {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer fs.CheckClose(in, &err)
			file, err := fsys.Open(cmd.Context(), args[1], "w")
			if err != nil {
				return err
			}
			defer fs.CheckClose(file, &err)
			_, err = io.Copy(file, in)
			return err
		})
	},
}

var mkdirCmd = &cobra.Command{
	Use:   "mkdir <path>",
	Short: "Create a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		recreate, _ := cmd.Flags().GetBool("parents")
		return withFs(func(fsys fs.Fs) error {
			return fsys.MakeDir(cmd.Context(), args[0], recreate)
		})
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Remove a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFs(func(fsys fs.Fs) error {
			return fsys.Remove(cmd.Context(), args[0])
		})
	},
}

var rmdirCmd = &cobra.Command{
	Use:   "rmdir <path>",
	Short: "Remove an empty directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFs(func(fsys fs.Fs) error {
			return fsys.RemoveDir(cmd.Context(), args[0])
		})
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <src> <dst>",
	Short: "Move or rename a file or directory",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		overwrite, _ := cmd.Flags().GetBool("force")
		return withFs(func(fsys fs.Fs) error {
			return fsys.Move(cmd.Context(), args[0], args[1], overwrite)
		})
	},
}

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Copy a file server side",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		overwrite, _ := cmd.Flags().GetBool("force")
		return withFs(func(fsys fs.Fs) error {
			return fsys.Copy(cmd.Context(), args[0], args[1], overwrite)
		})
	},
}

var infoCmd = &cobra.Command{
	Use:   "info <path>",
	Short: "Show the metadata of a file or directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withFs(func(fsys fs.Fs) error {
			info, err := fsys.GetInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, namespace := range info.Namespaces() {
				fmt.Printf("[%s]\n", namespace)
				fields, _ := info.Namespace(namespace)
				keys := make([]string, 0, len(fields))
				for key := range fields {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				for _, key := range keys {
					fmt.Printf("  %s: %v\n", key, fields[key])
				}
			}
			return nil
		})
	},
}

func init() {
	mkdirCmd.Flags().BoolP("parents", "p", false, "don't fail if the directory already exists")
	mvCmd.Flags().BoolP("force", "f", false, "overwrite the destination if it exists")
	cpCmd.Flags().BoolP("force", "f", false, "overwrite the destination if it exists")
	rootCmd.AddCommand(lsCmd, catCmd, getCmd, putCmd, mkdirCmd, rmCmd, rmdirCmd, mvCmd, cpCmd, infoCmd)
}
