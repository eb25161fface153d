package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/stackguard/internal/model"
	"github.com/ppiankov/stackguard/internal/stack"
)

var (
	itemID          string
	itemKind        string
	itemDosage      string
	itemFrequency   string
	itemIngredients []string
)

// stackCmd represents the stack command
var stackCmd = &cobra.Command{
	Use:   "stack",
	Short: "Manage the supplements and medications you take",
	Long: `Manage your stack: the supplements and medications that every analysis is
checked against. The stack is stored in a local SQLite database
(stack.db_path, default ./stackguard.db), one stack per --user.`,
}

var stackAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an item to your stack",
	Long: `Add a supplement or medication to your stack.

Ingredients are given as name[:amount:unit] and enable nutrient upper limit checks.

Example:
  stackguard stack add "Calcium Citrate" --ingredient Calcium:500:mg
  stackguard stack add Warfarin --kind medication --dosage "5 mg" --frequency daily
  stackguard stack add "Vitamin D3" --ingredient "Vitamin D:50:mcg" --user alice`,
	Args: cobra.ExactArgs(1),
	RunE: runStackAdd,
}

var stackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the items in your stack",
	Args:  cobra.NoArgs,
	RunE:  runStackList,
}

var stackRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove an item from your stack",
	Args:  cobra.ExactArgs(1),
	RunE:  runStackRemove,
}

func init() {
	rootCmd.AddCommand(stackCmd)
	stackCmd.AddCommand(stackAddCmd)
	stackCmd.AddCommand(stackListCmd)
	stackCmd.AddCommand(stackRemoveCmd)

	stackAddCmd.Flags().StringVar(&itemID, "id", "", "item id (default: generated)")
	stackAddCmd.Flags().StringVar(&itemKind, "kind", string(model.KindSupplement), "supplement or medication")
	stackAddCmd.Flags().StringVar(&itemDosage, "dosage", "", "dosage as taken, e.g. \"500 mg\"")
	stackAddCmd.Flags().StringVar(&itemFrequency, "frequency", "", "how often, e.g. \"twice daily\"")
	stackAddCmd.Flags().StringArrayVar(&itemIngredients, "ingredient", nil, "ingredient as name[:amount:unit] (repeatable)")
}

func withStackStore(fn func(ctx context.Context, store stack.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStackStore(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(context.Background(), store)
}

func runStackAdd(cmd *cobra.Command, args []string) error {
	ingredients, err := parseIngredients(itemIngredients)
	if err != nil {
		return err
	}

	item := model.StackItem{
		ID:          itemID,
		Name:        args[0],
		Kind:        model.StackKind(strings.ToLower(itemKind)),
		Dosage:      itemDosage,
		Frequency:   itemFrequency,
		Ingredients: ingredients,
	}

	return withStackStore(func(ctx context.Context, store stack.Store) error {
		added, err := store.Add(ctx, userID, item)
		if errors.Is(err, stack.ErrDuplicateItem) {
			return fmt.Errorf("%s is already in your stack", item.ID)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s (%s) as %s\n", added.Name, added.Kind, added.ID)
		return nil
	})
}

func runStackList(cmd *cobra.Command, args []string) error {
	return withStackStore(func(ctx context.Context, store stack.Store) error {
		items, err := store.CurrentStack(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Your stack is empty. Add items with 'stackguard stack add'.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tKIND\tDOSAGE\tFREQUENCY\tINGREDIENTS")
		for _, item := range items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				item.ID, item.Name, item.Kind, dash(item.Dosage), dash(item.Frequency), formatIngredients(item.Ingredients))
		}
		return w.Flush()
	})
}

func runStackRemove(cmd *cobra.Command, args []string) error {
	return withStackStore(func(ctx context.Context, store stack.Store) error {
		err := store.Remove(ctx, userID, args[0])
		if errors.Is(err, stack.ErrItemNotFound) {
			return fmt.Errorf("no item %q in your stack", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s\n", args[0])
		return nil
	})
}

// parseIngredients parses name[:amount:unit] specs
func parseIngredients(specs []string) ([]model.Ingredient, error) {
	var out []model.Ingredient
	for _, spec := range specs {
		parts := strings.Split(spec, ":")
		ing := model.Ingredient{Name: strings.TrimSpace(parts[0])}

		switch len(parts) {
		case 1:
		case 3:
			amount, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
			if err != nil || amount < 0 {
				return nil, fmt.Errorf("invalid amount in ingredient %q", spec)
			}
			ing.Amount = amount
			ing.Unit = strings.TrimSpace(parts[2])
		default:
			return nil, fmt.Errorf("invalid ingredient %q: want name or name:amount:unit", spec)
		}

		if ing.Name == "" {
			return nil, fmt.Errorf("invalid ingredient %q: empty name", spec)
		}
		out = append(out, ing)
	}
	return out, nil
}

func formatIngredients(ings []model.Ingredient) string {
	if len(ings) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(ings))
	for _, ing := range ings {
		if ing.Amount > 0 {
			parts = append(parts, fmt.Sprintf("%s %g%s", ing.Name, ing.Amount, ing.Unit))
		} else {
			parts = append(parts, ing.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
