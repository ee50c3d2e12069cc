// Package typesense is a client for a Typesense cluster.
//
// A Client is built from a config.Config and owns one dispatcher: every
// resource handle shares its node pool, retry policy and HTTP transport.
// Handles are thin path builders. Child handles such as client.Collection("books")
// are created on first use and cached by their parent, so repeated lookups
// return the same value.
//
//	client, err := typesense.NewClient(cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	results, err := client.Collection("books").Documents().Search(ctx, typesense.SearchParams{
//		"q":        "harry",
//		"query_by": []string{"title", "authors"},
//	})
//
// Errors are *apierror.Error values and can be matched against the sentinels
// in package apierror, e.g. errors.Is(err, apierror.ErrNotFound).
package typesense
