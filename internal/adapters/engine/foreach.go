package engine

import (
	"fmt"
	"reflect"

	"github.com/eleven-am/weft/internal/domain"
)

// forEachTempOutput is the accumulator variable collecting iteration outputs
// inside the for-each scope.
const forEachTempOutput = "foreach_output"

// executeForEach expands the multi-instance node: a hidden split bookkeeping
// instance fans out one child per collection item, a join records each
// completing iteration.
func (pi *Instance) executeForEach(ni *nodeInstance) error {
	ni.scope = domain.Variables{}

	split := pi.addNodeInstance(ni.node, ni.id)
	split.role = roleForEachSplit

	return pi.executeForEachSplit(ni, split)
}

func (pi *Instance) executeForEachSplit(forEach, split *nodeInstance) error {
	items, err := pi.evaluateCollection(forEach)
	pi.removeNodeInstance(split)
	if err != nil {
		return err
	}

	node := forEach.node
	if len(items) == 0 {
		return pi.completeAndFollow(forEach)
	}
	if node.Body == nil {
		return domain.NewConfigurationError(pi.runtime.process.ID, node.Name, "for-each node has no body")
	}

	children := make([]*nodeInstance, 0, len(items))
	for _, item := range items {
		child := pi.addNodeInstance(node.Body, forEach.id)
		child.scope = domain.Variables{node.VariableName: item}
		children = append(children, child)
	}
	forEach.remaining = len(children)

	for _, child := range children {
		if pi.status != domain.InstanceStatusActive {
			return nil
		}
		// A completion condition met by an earlier iteration abandons the
		// rest; abandoned children are already gone from the arena.
		if _, alive := pi.nodes[child.id]; !alive {
			continue
		}
		pi.runtime.logger.Debug("triggering node in multi-instance loop",
			"instance_id", pi.id,
			"node_id", child.node.ID)
		if err := pi.executeNode(child); err != nil {
			return err
		}
	}

	if !node.WaitForCompletion {
		owner := forEach.owner
		for _, conn := range node.OutgoingDefault() {
			if pi.status != domain.InstanceStatusActive {
				return nil
			}
			if err := pi.triggerConnection(conn, owner); err != nil {
				return err
			}
		}
	}
	return nil
}

// forEachIterationCompleted is the join side, invoked once per completing
// iteration.
func (pi *Instance) forEachIterationCompleted(forEach, child *nodeInstance) error {
	node := forEach.node

	tempVars := domain.Variables{}
	if node.OutputVariableName != "" {
		accumulator, _ := forEach.scope[forEachTempOutput].([]interface{})
		outputValue, _ := pi.resolveVariable(child, node.OutputVariableName)
		accumulator = append(accumulator, outputValue)
		forEach.scope[forEachTempOutput] = accumulator

		tempVars[node.OutputVariableName] = outputValue
		if node.OutputCollection != "" {
			tempVars[node.OutputCollection] = accumulator
		}
	}

	completionMet := false
	if node.CompletionCondition != nil {
		vars := pi.visibleVars(child)
		for k, v := range tempVars {
			vars[k] = v
		}
		result := node.CompletionCondition(vars)
		met, ok := result.(bool)
		if !ok {
			return domain.NewConfigurationError(pi.runtime.process.ID, node.Name,
				fmt.Sprintf("completion condition expression must return boolean values: %v", result))
		}
		completionMet = met
	}

	pi.removeNodeInstance(child)
	forEach.remaining--

	if forEach.remaining <= 0 || completionMet {
		return pi.finishForEach(forEach)
	}
	return nil
}

// finishForEach folds the accumulator into the outer output collection,
// merging with prior content, drops the container together with any
// abandoned iterations, and follows the outgoing connections when the
// for-each waited for completion.
func (pi *Instance) finishForEach(forEach *nodeInstance) error {
	node := forEach.node

	if node.OutputCollection != "" {
		accumulator, _ := forEach.scope[forEachTempOutput].([]interface{})
		if existing, ok := pi.vars[node.OutputCollection].([]interface{}); ok {
			accumulator = append(existing, accumulator...)
		}
		pi.vars[node.OutputCollection] = accumulator
	}

	if owner, exists := pi.nodes[forEach.owner]; forEach.owner != "" && exists && owner.node.Kind == domain.KindForEach {
		// Nested for-each: finishing the inner one completes an iteration of
		// the outer one.
		return pi.forEachIterationCompleted(owner, forEach)
	}

	if !node.WaitForCompletion {
		pi.removeNodeInstance(forEach)
		return nil
	}

	owner := forEach.owner
	outgoing := node.OutgoingDefault()
	if len(outgoing) > 1 && !pi.runtime.config.MultiConnection {
		outgoing = outgoing[:1]
	}
	pi.removeNodeInstance(forEach)

	for _, conn := range outgoing {
		if pi.status != domain.InstanceStatusActive {
			return nil
		}
		if err := pi.triggerConnection(conn, owner); err != nil {
			return err
		}
	}
	return nil
}

// evaluateCollection resolves the for-each collection: first as a variable in
// the current scope, then through the configured expression. A nil result is
// treated as empty, arrays are materialized, anything else is a
// configuration error.
func (pi *Instance) evaluateCollection(forEach *nodeInstance) ([]interface{}, error) {
	node := forEach.node

	value, found := pi.resolveVariable(forEach, node.Collection)
	if !found || node.Collection == "" {
		if node.CollectionExpr == nil {
			return nil, domain.NewConfigurationError(pi.runtime.process.ID, node.Name,
				"could not find collection "+node.Collection)
		}
		value = node.CollectionExpr(pi.visibleVars(forEach))
	}

	if value == nil {
		return nil, nil
	}

	if items, ok := value.([]interface{}); ok {
		return items, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
		return items, nil
	}

	return nil, domain.NewConfigurationError(pi.runtime.process.ID, node.Name,
		fmt.Sprintf("unexpected collection type: %T", value))
}
