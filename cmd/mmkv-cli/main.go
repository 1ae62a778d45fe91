package main

import (
	"fmt"
	"os"

	"github.com/IFLYmingchen7/mmkv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	rootDir string
	mmapID  string
	cryptKey string
)

func openStore() *mmkv.Store {
	mmkv.Initialize(rootDir)
	var key []byte
	if cryptKey != "" {
		key = []byte(cryptKey)
	}
	s := mmkv.Open(mmapID, mmkv.StoreOptions{CryptKey: key})
	if s == nil {
		logrus.WithField("mmap_id", mmapID).Fatal("mmkv-cli: failed to open store")
	}
	return s
}

var rootCmd = &cobra.Command{
	Use:   "mmkv-cli",
	Short: "Inspect and edit an mmkv key/value store from the command line",
}

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the string value for a key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		v, ok := s.GetString(args[0], "")
		if !ok {
			fmt.Fprintln(os.Stderr, "not found")
			os.Exit(1)
		}
		fmt.Println(v)
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a key to a string value",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		if !s.SetString(args[0], args[1]) {
			logrus.Fatal("mmkv-cli: set failed")
		}
	},
}

var delCmd = &cobra.Command{
	Use:   "del <key>",
	Short: "Remove a key",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		s.Remove(args[0])
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every key in the store",
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		for _, k := range s.AllKeys() {
			fmt.Println(k)
		}
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Force a full writeback, dropping padding and stale tail bytes",
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		if !s.Compact() {
			logrus.Fatal("mmkv-cli: compact failed")
		}
	},
}

var trimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Compact and shrink the backing file",
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		if !s.Trim() {
			logrus.Fatal("mmkv-cli: trim failed")
		}
	},
}

var rekeyCmd = &cobra.Command{
	Use:   "rekey [new-key]",
	Short: "Change (or remove, if omitted) the store's crypt key",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		var newKey []byte
		if len(args) == 1 {
			newKey = []byte(args[0])
		}
		if !s.Rekey(newKey) {
			logrus.Fatal("mmkv-cli: rekey failed")
		}
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup <dir>",
	Short: "Copy the store's primary file and sidecar into dir",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		if err := s.BackupTo(args[0]); err != nil {
			logrus.WithError(err).Fatal("mmkv-cli: backup failed")
		}
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "root directory stores are opened under")
	rootCmd.PersistentFlags().StringVar(&mmapID, "id", "", "store identity (mmap_id)")
	rootCmd.PersistentFlags().StringVar(&cryptKey, "key", "", "crypt key, if the store is encrypted")
	rootCmd.MarkPersistentFlagRequired("id")

	rootCmd.AddCommand(getCmd, setCmd, delCmd, listCmd, compactCmd, trimCmd, rekeyCmd, backupCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
