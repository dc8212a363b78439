package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lensdb/lens/pkg/logger"
	"github.com/lensdb/lens/pkg/view"
	"github.com/lensdb/lens/storage/mongodb"
)

const connectTimeout = 10 * time.Second

// bindViewFlags registers the chain-operation flags shared by every read
// command.
func bindViewFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("tag", "", "keep only records carrying this tag")
	flags.String("filter", "", "store-native match predicate, as extended JSON")
	flags.String("sort", "", "field to sort by (dotted paths allowed)")
	flags.Bool("reverse", false, "sort in descending order")
	flags.Int64("take", -1, "limit the view to this many records")
	flags.Bool("random", false, "sample uniformly at random instead of taking the head")
	flags.Int64("offset", -1, "drop this many records from the head of the view")
	flags.StringSlice("select", nil, "keep only the records with these ids")
	flags.StringSlice("exclude", nil, "drop the records with these ids")
}

// openView connects to the configured collection and builds the view the
// command flags describe. The returned closer disconnects the client.
func openView(ctx context.Context, cmd *cobra.Command, log logger.Logger) (*view.View, func(), error) {
	uri := viper.GetString(uriFlag)
	database := viper.GetString(databaseFlag)
	collection := viper.GetString(collectionFlag)
	if database == "" || collection == "" {
		return nil, nil, fmt.Errorf("both --%s and --%s are required", databaseFlag, collectionFlag)
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %q: %w", uri, err)
	}
	closer := func() {
		_ = client.Disconnect(context.Background())
	}

	coll := mongodb.New(
		client.Database(database).Collection(collection),
		mongodb.WithLogger(log),
	)

	v, err := buildView(cmd, view.New(coll))
	if err != nil {
		closer()
		return nil, nil, err
	}
	return v, closer, nil
}

func buildView(cmd *cobra.Command, v *view.View) (*view.View, error) {
	flags := cmd.Flags()

	filter := view.Filter{}
	filter.Tag, _ = flags.GetString("tag")
	if expr, _ := flags.GetString("filter"); expr != "" {
		var doc bson.D
		if err := bson.UnmarshalExtJSON([]byte(expr), false, &doc); err != nil {
			return nil, fmt.Errorf("parse --filter: %w", err)
		}
		filter.Expr = doc
	}
	if filter.Tag != "" || filter.Expr != nil {
		var err error
		if v, err = v.Filter(filter); err != nil {
			return nil, err
		}
	}

	if ids, _ := flags.GetStringSlice("select"); len(ids) > 0 {
		var err error
		if v, err = v.Select(ids); err != nil {
			return nil, err
		}
	}

	if ids, _ := flags.GetStringSlice("exclude"); len(ids) > 0 {
		var err error
		if v, err = v.Exclude(ids); err != nil {
			return nil, err
		}
	}

	if field, _ := flags.GetString("sort"); field != "" {
		reverse, _ := flags.GetBool("reverse")
		var err error
		if v, err = v.SortBy(field, reverse); err != nil {
			return nil, err
		}
	}

	if n, _ := flags.GetInt64("offset"); n >= 0 {
		var err error
		if v, err = v.Offset(n); err != nil {
			return nil, err
		}
	}

	if size, _ := flags.GetInt64("take"); size >= 0 {
		random, _ := flags.GetBool("random")
		var err error
		if v, err = v.Take(size, random); err != nil {
			return nil, err
		}
	}

	return v, nil
}
