package query

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/lealre/natours-backend/internal/apperrors"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func countOf(n int64) CountFunc {
	return func(ctx context.Context, filter bson.M) (int64, error) {
		return n, nil
	}
}

func TestBuildFullQuery(t *testing.T) {
	params := Params{
		"price":  map[string]string{"gte": "100"},
		"sort":   "-price,duration",
		"fields": "name,price",
		"page":   "2",
		"limit":  "5",
	}

	spec, err := New(params).Filter().Sort().LimitFields().Paginate(context.Background(), countOf(12))
	require.NoError(t, err)

	require.Equal(t, bson.M{"price": bson.M{"$gte": int64(100)}}, spec.Filter)
	require.Equal(t, bson.D{{Key: "price", Value: -1}, {Key: "duration", Value: 1}}, spec.Sort)
	require.Equal(t, bson.M{"name": 1, "price": 1}, spec.Projection)
	require.Equal(t, int64(5), spec.Skip)
	require.Equal(t, int64(5), spec.Limit)
	require.Equal(t, 2, spec.Page)
	require.Equal(t, 3, spec.TotalPages)
	require.Equal(t, int64(12), spec.TotalCount)
}

func TestFilterPassesCountFilter(t *testing.T) {
	var seen bson.M
	count := func(ctx context.Context, filter bson.M) (int64, error) {
		seen = filter
		return 1, nil
	}

	_, err := New(Params{"difficulty": "easy", "duration": "5"}).Filter().Paginate(context.Background(), count)
	require.NoError(t, err)
	require.Equal(t, bson.M{"difficulty": "easy", "duration": int64(5)}, seen)
}

func TestWhereOverridesClientFilter(t *testing.T) {
	spec, err := New(Params{"tourId": "other", "rating": "5"}).
		Where(bson.M{"tourId": "t1"}).
		Filter().
		Paginate(context.Background(), countOf(1))
	require.NoError(t, err)
	require.Equal(t, bson.M{"tourId": "t1", "rating": int64(5)}, spec.Filter)
}

func TestWhereWithoutFilterStage(t *testing.T) {
	spec, err := New(Params{"rating": "5"}).Where(bson.M{"tourId": "t1"}).Paginate(context.Background(), countOf(0))
	require.NoError(t, err)
	require.Equal(t, bson.M{"tourId": "t1"}, spec.Filter)
}

func TestPageClamping(t *testing.T) {
	tests := []struct {
		name      string
		params    Params
		total     int64
		wantPage  int
		wantSkip  int64
		wantLimit int64
	}{
		{name: "page beyond last", params: Params{"page": "10", "limit": "10"}, total: 25, wantPage: 3, wantSkip: 20, wantLimit: 10},
		{name: "page zero", params: Params{"page": "0", "limit": "10"}, total: 25, wantPage: 1, wantSkip: 0, wantLimit: 10},
		{name: "negative page", params: Params{"page": "-4"}, total: 25, wantPage: 1, wantSkip: 0, wantLimit: 10},
		{name: "defaults", params: Params{}, total: 25, wantPage: 1, wantSkip: 0, wantLimit: 10},
		{name: "no matches", params: Params{"page": "7"}, total: 0, wantPage: 1, wantSkip: 0, wantLimit: 10},
		{name: "malformed values", params: Params{"page": "two", "limit": "many"}, total: 25, wantPage: 1, wantSkip: 0, wantLimit: 10},
		{name: "limit capped", params: Params{"limit": "5000"}, total: 250, wantPage: 1, wantSkip: 0, wantLimit: MaxLimit},
		{name: "exact last page", params: Params{"page": "3", "limit": "5"}, total: 15, wantPage: 3, wantSkip: 10, wantLimit: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := New(tt.params).Paginate(context.Background(), countOf(tt.total))
			require.NoError(t, err)
			require.Equal(t, tt.wantPage, spec.Page)
			require.Equal(t, tt.wantSkip, spec.Skip)
			require.Equal(t, tt.wantLimit, spec.Limit)
			require.GreaterOrEqual(t, spec.Skip, int64(0))
		})
	}
}

func TestRejectsOperatorInjection(t *testing.T) {
	tests := map[string]Params{
		"unknown operator":   {"price": map[string]string{"ne": "1"}},
		"raw store operator": {"price": map[string]string{"$gt": "1"}},
		"dollar field":       {"$where": "sleep(1000)"},
		"regex operator":     {"name": map[string]string{"regex": ".*"}},
		"dotted dollar":      {"a.$b": "1"},
	}

	for name, params := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := New(params).Filter().Paginate(context.Background(), countOf(1))
			require.Error(t, err)
			require.Equal(t, apperrors.InvalidRequest, apperrors.KindOf(err))
		})
	}
}

func TestSortAndFieldsValidation(t *testing.T) {
	_, err := New(Params{"sort": "-$natural"}).Sort().Paginate(context.Background(), countOf(1))
	require.Equal(t, apperrors.InvalidRequest, apperrors.KindOf(err))

	_, err = New(Params{"fields": "name,-price"}).LimitFields().Paginate(context.Background(), countOf(1))
	require.Equal(t, apperrors.InvalidRequest, apperrors.KindOf(err))

	spec, err := New(Params{"fields": "-__v,-secretTour"}).LimitFields().Paginate(context.Background(), countOf(1))
	require.NoError(t, err)
	require.Equal(t, bson.M{"__v": 0, "secretTour": 0}, spec.Projection)

	spec, err = New(Params{"fields": "name,-_id"}).LimitFields().Paginate(context.Background(), countOf(1))
	require.NoError(t, err)
	require.Equal(t, bson.M{"name": 1, "_id": 0}, spec.Projection)

	spec, err = New(Params{"sort": "price, ,price,-ratingsAverage"}).Sort().Paginate(context.Background(), countOf(1))
	require.NoError(t, err)
	require.Equal(t, bson.D{{Key: "price", Value: 1}, {Key: "ratingsAverage", Value: -1}}, spec.Sort)
}

func TestStageErrorsAreSticky(t *testing.T) {
	called := false
	count := func(ctx context.Context, filter bson.M) (int64, error) {
		called = true
		return 0, nil
	}

	_, err := New(Params{"price": map[string]string{"in": "1"}, "sort": "name"}).
		Filter().
		Sort().
		LimitFields().
		Paginate(context.Background(), count)
	require.Error(t, err)
	require.False(t, called)
}

func TestCountErrorIsReturned(t *testing.T) {
	boom := errors.New("server selection timeout")
	count := func(ctx context.Context, filter bson.M) (int64, error) {
		return 0, boom
	}

	_, err := New(Params{}).Paginate(context.Background(), count)
	require.ErrorIs(t, err, boom)
	require.Equal(t, apperrors.Internal, apperrors.KindOf(err))
}

func TestCoerce(t *testing.T) {
	require.Equal(t, int64(5), coerce("5"))
	require.Equal(t, 4.5, coerce("4.5"))
	require.Equal(t, true, coerce("true"))
	require.Equal(t, "easy", coerce("easy"))
	require.Equal(t, "NaN", coerce("NaN"))
	require.Equal(t, "t", coerce("t"))
	require.Equal(t, 1e3, coerce("1e3"))
	require.Equal(t, "0x1p-2", coerce("0x1p-2"))
	require.Equal(t, "Inf", coerce("Inf"))
}

func TestIdentifierFieldsAreNotCoerced(t *testing.T) {
	params := Params{
		"userId": "650000000000000000000001",
		"tourId": map[string]string{"gte": "64000000000000000000e001"},
		"_id":    "123456789012345678901234",
		"rating": "5",
	}

	spec, err := New(params).Filter().Paginate(context.Background(), countOf(0))
	require.NoError(t, err)
	require.Equal(t, "650000000000000000000001", spec.Filter["userId"])
	require.Equal(t, bson.M{"$gte": "64000000000000000000e001"}, spec.Filter["tourId"])
	require.Equal(t, "123456789012345678901234", spec.Filter["_id"])
	require.Equal(t, int64(5), spec.Filter["rating"])
}

func TestSpecIncludes(t *testing.T) {
	require.True(t, Spec{}.Includes("ratingsAverage"))

	inclusion := Spec{Projection: bson.M{"name": 1, "price": 1, "_id": 0}}
	require.True(t, inclusion.Includes("name"))
	require.False(t, inclusion.Includes("ratingsAverage"))
	require.False(t, inclusion.Includes("_id"))

	exclusion := Spec{Projection: bson.M{"ratingsQuantity": 0}}
	require.False(t, exclusion.Includes("ratingsQuantity"))
	require.True(t, exclusion.Includes("ratingsAverage"))

	onlyId := Spec{Projection: bson.M{"_id": 0}}
	require.True(t, onlyId.Includes("name"))
}

func TestParamsFromValues(t *testing.T) {
	values, err := url.ParseQuery("price[gte]=100&price[lt]=500&difficulty=easy&difficulty=medium&sort=-price")
	require.NoError(t, err)

	params, err := ParamsFromValues(values)
	require.NoError(t, err)
	require.Equal(t, Params{
		"price":      map[string]string{"gte": "100", "lt": "500"},
		"difficulty": "medium",
		"sort":       "-price",
	}, params)
}

func TestParamsFromValuesRejectsMalformedKeys(t *testing.T) {
	for _, raw := range []string{
		"price[gte][x]=1",
		"price[gte=1",
		"price]=1",
		"[gte]=1",
		"price[]=1",
		"price=1&price[gte]=2",
	} {
		values, err := url.ParseQuery(raw)
		require.NoError(t, err)

		_, err = ParamsFromValues(values)
		require.Error(t, err, raw)
		require.Equal(t, apperrors.InvalidRequest, apperrors.KindOf(err), raw)
	}
}
